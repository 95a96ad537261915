package portsweep

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Port expression errors
var (
	ErrPortOutOfRange    = errors.New("port out of range (1-65535)")
	ErrReversedPortRange = errors.New("range start greater than end")
)

// TopPorts is the fixed set of commonly scanned ports expanded by the "top"
// alias in a port expression.
var TopPorts = []int{
	21, 22, 23, 25, 53, 67, 68, 80, 110, 111, 123, 135, 139, 143, 161,
	179, 389, 443, 445, 465, 514, 587, 993, 995, 1433, 1521, 2049, 3306,
	3389, 8080, 8443,
}

// ExpandPorts parses a comma-separated port expression into an ascending,
// deduplicated port list. Each token is the "top" alias, a single port, or a
// hyphenated range; all ports must lie in 1-65535 and a range requires
// start <= end. Malformed tokens are skipped with a warning and returned in
// the second value so callers can observe them; they never abort expansion.
// An empty result means the caller has no valid ports and must not scan.
func ExpandPorts(spec string, logger *zap.Logger) ([]int, []string) {
	seen := make(map[int]struct{})
	var skipped []string

	for _, token := range strings.Split(spec, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		if strings.EqualFold(token, "top") {
			for _, p := range TopPorts {
				seen[p] = struct{}{}
			}
			continue
		}

		if strings.Contains(token, "-") {
			start, end, err := parsePortRange(token)
			if err != nil {
				logger.Warn("Skipping invalid port token",
					zap.String("token", token),
					zap.Error(err))
				skipped = append(skipped, token)
				continue
			}
			for p := start; p <= end; p++ {
				seen[p] = struct{}{}
			}
			continue
		}

		port, err := parsePort(token)
		if err != nil {
			logger.Warn("Skipping invalid port token",
				zap.String("token", token),
				zap.Error(err))
			skipped = append(skipped, token)
			continue
		}
		seen[port] = struct{}{}
	}

	ports := make([]int, 0, len(seen))
	for p := range seen {
		ports = append(ports, p)
	}
	sort.Ints(ports)

	return ports, skipped
}

// parsePort parses a single port token and validates its range.
func parsePort(token string) (int, error) {
	port, err := strconv.Atoi(token)
	if err != nil {
		return 0, err
	}
	if port < 1 || port > 65535 {
		return 0, ErrPortOutOfRange
	}
	return port, nil
}

// parsePortRange parses a "start-end" token. Both bounds must be valid ports
// and start must not exceed end.
func parsePortRange(token string) (int, int, error) {
	bounds := strings.SplitN(token, "-", 2)
	start, err := parsePort(strings.TrimSpace(bounds[0]))
	if err != nil {
		return 0, 0, err
	}
	end, err := parsePort(strings.TrimSpace(bounds[1]))
	if err != nil {
		return 0, 0, err
	}
	if start > end {
		return 0, 0, ErrReversedPortRange
	}
	return start, end, nil
}
