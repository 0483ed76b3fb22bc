//go:build linux

package stats

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

func deltaU64(now, prev uint64) uint64 {
	if now >= prev {
		return now - prev
	}
	// counter wrapped or reset
	return 0
}

// isFileReadable reports whether the file can be opened and contains at
// least one byte of data.
func isFileReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	buf := make([]byte, 1)
	n, err := f.Read(buf)
	return err == nil && n > 0
}

// readFirstLine returns the first line of a file with surrounding
// whitespace trimmed. Most cgroup control files are a single line.
func readFirstLine(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("stats: empty file %s", path)
	}
	return strings.TrimSpace(sc.Text()), nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

func readUintFile(path string) (uint64, error) {
	line, err := readFirstLine(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stats: %s: %w", path, err)
	}
	return v, nil
}

func readIntFile(path string) (int64, error) {
	line, err := readFirstLine(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("stats: %s: %w", path, err)
	}
	return v, nil
}
