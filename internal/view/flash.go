package view

import (
	"github.com/labstack/echo-contrib/session"
	"github.com/labstack/echo/v4"
	"github.com/nfrund/signin/internal/domain"
)

const flashSessionName = "flash-session"

// FlashData holds notices carried across a full page navigation, grouped by level.
type FlashData struct {
	Success []string `json:"success,omitempty"`
	Error   []string `json:"error,omitempty"`
	Info    []string `json:"info,omitempty"`
}

// Empty reports whether there is nothing to show.
func (f FlashData) Empty() bool {
	return len(f.Success) == 0 && len(f.Error) == 0 && len(f.Info) == 0
}

// setFlash sets a flash message in the session.
func setFlash(c echo.Context, key, message string) error {
	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return err
	}
	sess.AddFlash(message, key)
	return sess.Save(c.Request(), c.Response())
}

// SetFlashNotice keeps n for the page the browser lands on next.
func SetFlashNotice(c echo.Context, n domain.Notice) error {
	return setFlash(c, string(n.Level), n.Message)
}

// GetFlashData retrieves and clears flash messages from the session.
func GetFlashData(c echo.Context) FlashData {
	var data FlashData

	sess, err := session.Get(flashSessionName, c)
	if err != nil {
		return data
	}

	// Flashes() reads and clears in one go.
	data.Success = toStrings(sess.Flashes(string(domain.NoticeSuccess)))
	data.Error = toStrings(sess.Flashes(string(domain.NoticeError)))
	data.Info = toStrings(sess.Flashes(string(domain.NoticeInfo)))

	if !data.Empty() {
		_ = sess.Save(c.Request(), c.Response())
	}
	return data
}

func toStrings(values []interface{}) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
