package steam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/steampulse/steampulse/internal/netutil"
)

type currentPlayersResp struct {
	Response struct {
		PlayerCount int64 `json:"player_count"`
		Result      int   `json:"result"`
	} `json:"response"`
}

// CurrentPlayers returns the live concurrent player count for an app.
// Unknown appids map to ErrNotFound.
func (c *Client) CurrentPlayers(ctx context.Context, appid int64) (int64, error) {
	q := url.Values{}
	q.Set("appid", strconv.FormatInt(appid, 10))
	u := c.apiURL + "/ISteamUserStats/GetNumberOfCurrentPlayers/v1/?" + q.Encode()

	var out currentPlayersResp
	err := netutil.DoWithRetry(ctx, func(ctx context.Context) error {
		return netutil.GetJSON(ctx, c.http, u, &out)
	})
	if err != nil {
		// The endpoint answers 404 for appids Steam does not know.
		var se *netutil.HTTPStatusError
		if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
			return 0, fmt.Errorf("steam: current players %d: %w", appid, ErrNotFound)
		}
		return 0, fmt.Errorf("steam: current players %d: %w", appid, err)
	}
	if out.Response.Result != 1 {
		return 0, fmt.Errorf("steam: current players %d: %w", appid, ErrNotFound)
	}
	return out.Response.PlayerCount, nil
}
