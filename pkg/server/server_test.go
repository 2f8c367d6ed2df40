package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/perbu/tactiekbot/pkg/qa"
)

type fakeAnswerer struct {
	mu        sync.Mutex
	questions []string
	ks        []int
	answer    string
	err       error
}

func (f *fakeAnswerer) Answer(_ context.Context, question string, k int) (qa.Answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions = append(f.questions, question)
	f.ks = append(f.ks, k)
	if f.err != nil {
		return qa.Answer{}, f.err
	}
	return qa.Answer{Text: f.answer}, nil
}

func (f *fakeAnswerer) AnswerDefault(ctx context.Context, question string) (qa.Answer, error) {
	return f.Answer(ctx, question, qa.DefaultK)
}

func serve(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func postForm(question string) *http.Request {
	form := url.Values{"question": {question}}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func postJSON(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/ask", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestHealthHandler_OK(t *testing.T) {
	w := serve(t, New(&fakeAnswerer{}), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
}

func TestFormHandler_RendersEmptyForm(t *testing.T) {
	w := serve(t, New(&fakeAnswerer{}), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	body := w.Body.String()
	assert.Contains(t, body, "Ajax Tactiek Bot")
	assert.Contains(t, body, "Wat wil je weten over de tactiek van Ajax?")
	assert.Contains(t, body, "Bijv. Hoe speelt Ajax met de vleugelspelers?")
	assert.Contains(t, body, "Vraag Stellen")
	assert.Contains(t, body, "Ontwikkeld voor Ajax fans • 2023")
	assert.NotContains(t, body, `class="response`)
}

func TestSubmitHandler_Answer(t *testing.T) {
	ans := &fakeAnswerer{answer: "Ajax speelt 4-3-3.\n\nDe backs schuiven in."}
	w := serve(t, New(ans), postForm("  Hoe speelt Ajax?  "))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "<p>Ajax speelt 4-3-3.</p>")
	assert.Contains(t, body, "<p>De backs schuiven in.</p>")
	assert.Contains(t, body, ">Hoe speelt Ajax?</textarea>")
	assert.Equal(t, []string{"Hoe speelt Ajax?"}, ans.questions)
	assert.Equal(t, []int{qa.DefaultK}, ans.ks)
}

func TestSubmitHandler_BlankQuestion(t *testing.T) {
	ans := &fakeAnswerer{answer: "niet gebruikt"}
	w := serve(t, New(ans), postForm("   \n "))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), `class="response`)
	assert.Empty(t, ans.questions, "blank questions never reach the pipeline")
}

func TestSubmitHandler_Failure(t *testing.T) {
	ans := &fakeAnswerer{err: fmt.Errorf("%w: boom", qa.ErrGeneration)}
	w := serve(t, New(ans), postForm("Hoe speelt Ajax?"))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Sorry, er is een fout opgetreden bij het verwerken van je vraag. Probeer het later opnieuw.")
	assert.NotContains(t, body, "boom")
}

func TestSubmitHandler_EscapesHTML(t *testing.T) {
	ans := &fakeAnswerer{answer: "<script>alert(1)</script>"}
	w := serve(t, New(ans), postForm("<b>vraag</b>"))

	body := w.Body.String()
	assert.NotContains(t, body, "<script>alert(1)</script>")
	assert.NotContains(t, body, "<b>vraag</b>")
	assert.Contains(t, body, "&lt;script&gt;")
}

func TestAskHandler(t *testing.T) {
	ans := &fakeAnswerer{answer: "Ajax drukt hoog."}
	w := serve(t, New(ans), postJSON(`{"question": "Hoe verdedigt Ajax?"}`))

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, map[string]string{"answer": "Ajax drukt hoog."}, resp)
	assert.Equal(t, []int{qa.DefaultK}, ans.ks)
}

func TestAskHandler_CustomK(t *testing.T) {
	ans := &fakeAnswerer{answer: "ok"}
	w := serve(t, New(ans), postJSON(`{"question": "vraag", "k": 7}`))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{7}, ans.ks)
}

func TestAskHandler_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"question":`},
		{"empty body", ``},
		{"missing question", `{}`},
		{"blank question", `{"question": "   "}`},
		{"k zero", `{"question": "vraag", "k": 0}`},
		{"k too large", `{"question": "vraag", "k": 21}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := &fakeAnswerer{answer: "ok"}
			w := serve(t, New(ans), postJSON(tt.body))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Empty(t, ans.questions)
		})
	}
}

func TestAskHandler_Failures(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"retrieval", fmt.Errorf("%w: index gone", qa.ErrRetrieval), http.StatusInternalServerError},
		{"generation", fmt.Errorf("%w: 500", qa.ErrGeneration), http.StatusInternalServerError},
		{"timeout", fmt.Errorf("%w: %w: slow", qa.ErrGeneration, qa.ErrTimeout), http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, New(&fakeAnswerer{err: tt.err}), postJSON(`{"question": "vraag"}`))

			assert.Equal(t, tt.status, w.Code)
			var resp map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, FailureMessage, resp["error"])
		})
	}
}

func TestAskHandler_APIKey(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"wrong", "X-API-Key", "nope", http.StatusUnauthorized},
		{"bearer", "Authorization", "Bearer s3cret", http.StatusOK},
		{"bare authorization", "Authorization", "s3cret", http.StatusOK},
		{"x-api-key", "X-API-Key", "s3cret", http.StatusOK},
		{"wrong bearer", "Authorization", "Bearer nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans := &fakeAnswerer{answer: "ok"}
			req := postJSON(`{"question": "vraag"}`)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			w := serve(t, New(ans, WithAPIKey("s3cret")), req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status != http.StatusOK {
				assert.Empty(t, ans.questions)
			}
		})
	}
}

func TestAskHandler_FormIsNotProtected(t *testing.T) {
	ans := &fakeAnswerer{answer: "ok"}
	w := serve(t, New(ans, WithAPIKey("s3cret")), postForm("vraag"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, ans.questions, 1)
}

func TestRoutes_MethodAndPath(t *testing.T) {
	s := New(&fakeAnswerer{})

	w := serve(t, s, httptest.NewRequest(http.MethodGet, "/api/ask", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = serve(t, s, httptest.NewRequest(http.MethodGet, "/elders", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestParagraphs(t *testing.T) {
	assert.Equal(t, []string{"Een.", "Twee."}, paragraphs("Een.\n\nTwee."))
	assert.Nil(t, paragraphs(""))
	assert.Equal(t, []string{"Geen punt"}, paragraphs("Geen punt"))
}

func TestListenAndServe_GracefulShutdown(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(&fakeAnswerer{}).ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestListenAndServe_AddressInUse(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	err = New(&fakeAnswerer{}).ListenAndServe(context.Background(), l.Addr().String())
	assert.Error(t, err)
	assert.False(t, errors.Is(err, http.ErrServerClosed))
}
