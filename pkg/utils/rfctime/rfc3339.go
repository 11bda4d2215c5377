// Package rfctime formats timestamps of API responses.
package rfctime

import (
	"bytes"
	"encoding/json"
	"time"
)

// Layout of timestamps in responses. The offset is always numeric, like "+00:00".
const Layout = "2006-01-02T15:04:05.999-07:00"

// RFC3339 is a timestamp which is written in UTC with Layout,
// and read from any RFC3339 expression.
type RFC3339 time.Time

func (t RFC3339) Time() time.Time {
	return time.Time(t)
}

func (t RFC3339) String() string {
	return time.Time(t).UTC().Format(Layout)
}

// Parse reads RFC3339 date-time, with either "Z" or a numeric offset.
func Parse(s string) (RFC3339, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return RFC3339{}, err
	}
	return RFC3339(t), nil
}

func (t RFC3339) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *RFC3339) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	ret, err := Parse(s)
	if err != nil {
		return err
	}
	*t = ret
	return nil
}
