package main

import (
	"bufio"
	"os"
	"strings"
)

// defaultVideos are Voetbal International analyses of Ajax's play.
var defaultVideos = []string{
	"https://www.youtube.com/watch?v=gRr-elA4CAI",
	"https://www.youtube.com/watch?v=musCHUwvaCQ",
	"https://www.youtube.com/watch?v=fjgZL41lE0s",
	"https://www.youtube.com/watch?v=6B4wMci5W-o",
	"https://www.youtube.com/watch?v=EVD4DbWMevs",
	"https://www.youtube.com/watch?v=aBOYYDvYR4g",
	"https://www.youtube.com/watch?v=-a3nXl12glU",
	"https://www.youtube.com/watch?v=-W9nj4RCMW0",
	"https://www.youtube.com/watch?v=AA5A2o4t4kc",
	"https://www.youtube.com/watch?v=V5cmGvLAOXg",
}

// readVideoList reads one video URL or id per line. Blank lines and lines
// starting with # are ignored.
func readVideoList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var videos []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		videos = append(videos, line)
	}
	return videos, scanner.Err()
}
