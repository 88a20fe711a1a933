package persona

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Profile is a per-user persona fragment injected as auxiliary system context.
type Profile struct {
	Username    string
	DisplayName string
	Fragment    string
}

// Profiles is a read-only username-keyed profile set.
type Profiles map[string]Profile

// LoadProfiles reads username,display_name,persona rows. A missing file yields an empty set.
func LoadProfiles(path string) (Profiles, error) {
	out := Profiles{}
	if path == "" {
		return out, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return out, nil
		}
		return nil, fmt.Errorf("open profiles: %w", err)
	}
	defer func(f *os.File) {
		_ = f.Close()
	}(f)
	return ParseProfiles(f)
}

func ParseProfiles(r io.Reader) (Profiles, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	out := Profiles{}
	first := true
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse profiles: %w", err)
		}
		if first {
			first = false
			if len(rec) > 0 && strings.EqualFold(strings.TrimSpace(rec[0]), "username") {
				continue
			}
		}
		if len(rec) < 2 {
			continue
		}
		key := normalizeUsername(rec[0])
		if key == "" {
			continue
		}
		p := Profile{Username: key, DisplayName: strings.TrimSpace(rec[1])}
		if len(rec) > 2 {
			p.Fragment = strings.TrimSpace(rec[2])
		}
		out[key] = p
	}
	return out, nil
}

// Lookup finds the profile for a username; the second result is false when none is configured.
func (ps Profiles) Lookup(username string) (Profile, bool) {
	p, ok := ps[normalizeUsername(username)]
	return p, ok
}

func normalizeUsername(s string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "@"))
}
