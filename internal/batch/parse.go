package batch

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ParseBadgeLines reads a free-form badge upload, one badge per line.
// Only strictly numeric lines are accepted; headers, blank lines and
// anything else users paste in are silently dropped.
func ParseBadgeLines(r io.Reader) []string {
	var badges []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !isNumeric(line) {
			continue
		}
		badges = append(badges, line)
	}
	return badges
}

// Dismissal is one parsed line of a fixed-width dismissal file.
type Dismissal struct {
	Badge string
	Day   int
	Month int
	Year  int
}

// Date renders the termination date as dd/mm/yyyy, the wire format of the
// dismissal call.
func (d Dismissal) Date() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

// ParseDismissalLines reads a fixed-width dismissal file. Layout per line:
// badge in [0,11), day in [11,13), month in [13,15), year in [15,19).
// Lines shorter than 19 characters or with non-numeric fields are dropped.
func ParseDismissalLines(r io.Reader) []Dismissal {
	var out []Dismissal
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) < 19 {
			continue
		}
		badge := line[0:11]
		day, errD := strconv.Atoi(line[11:13])
		month, errM := strconv.Atoi(line[13:15])
		year, errY := strconv.Atoi(line[15:19])
		if !isNumeric(badge) || errD != nil || errM != nil || errY != nil {
			continue
		}
		out = append(out, Dismissal{Badge: badge, Day: day, Month: month, Year: year})
	}
	return out
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
