package steam

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var (
	steamID64Pattern = regexp.MustCompile(`^7656119\d{10}$`)
	vanityPattern    = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)
)

// PlayerRef identifies a Steam user either directly by SteamID64 or by a
// vanity name that still needs resolution. Exactly one field is set.
type PlayerRef struct {
	SteamID string
	Vanity  string
}

// ParsePlayerRef classifies raw input as a SteamID64, a vanity name, or a
// community profile URL containing one of those. Anything else is rejected.
func ParsePlayerRef(raw string) (PlayerRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PlayerRef{}, fmt.Errorf("steam: empty player reference")
	}

	if steamID64Pattern.MatchString(raw) {
		return PlayerRef{SteamID: raw}, nil
	}

	if strings.Contains(raw, "steamcommunity.com/") {
		return parseCommunityURL(raw)
	}

	if vanityPattern.MatchString(raw) {
		return PlayerRef{Vanity: raw}, nil
	}
	return PlayerRef{}, fmt.Errorf("steam: invalid player reference %q", raw)
}

func parseCommunityURL(raw string) (PlayerRef, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Hostname(), "steamcommunity.com") {
		return PlayerRef{}, fmt.Errorf("steam: invalid community URL %q", raw)
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 {
		return PlayerRef{}, fmt.Errorf("steam: invalid community URL %q", raw)
	}
	switch parts[0] {
	case "profiles":
		if steamID64Pattern.MatchString(parts[1]) {
			return PlayerRef{SteamID: parts[1]}, nil
		}
	case "id":
		if vanityPattern.MatchString(parts[1]) {
			return PlayerRef{Vanity: parts[1]}, nil
		}
	}
	return PlayerRef{}, fmt.Errorf("steam: invalid community URL %q", raw)
}
