package gpid

import (
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

// CompareVersions orders dotted release numbers such as "6.6.3.1". The first
// three segments are compared as semantic versions, any further segments
// numerically. It returns -1, 0 or +1.
func CompareVersions(a, b string) int {
	ca, ea := splitVersion(a)
	cb, eb := splitVersion(b)
	if c := semver.Compare(ca, cb); c != 0 {
		return c
	}
	n := len(ea)
	if len(eb) > n {
		n = len(eb)
	}
	for i := 0; i < n; i++ {
		x, y := segment(ea, i), segment(eb, i)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		}
	}
	return 0
}

func splitVersion(v string) (string, []string) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	parts := strings.Split(v, ".")
	core := make([]string, 3)
	for i := range core {
		core[i] = "0"
		if i < len(parts) && parts[i] != "" {
			core[i] = parts[i]
		}
	}
	var extra []string
	if len(parts) > 3 {
		extra = parts[3:]
	}
	return "v" + strings.Join(core, "."), extra
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
