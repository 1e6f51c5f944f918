package sqlite

import (
	"database/sql/driver"
	"fmt"
	"time"
)

func NowTimestamp() Timestamp {
	return Timestamp(time.Now())
}

// Timestamp is a time.Time variation that stores itself in the DB as the
// number of seconds since the Unix epoch.
type Timestamp time.Time

func (ts Timestamp) Format(layout string) string {
	return ts.Time().Format(layout)
}

func (ts Timestamp) Value() (driver.Value, error) {
	return time.Time(ts).Unix(), nil
}

func (ts *Timestamp) Scan(value interface{}) error {
	iVal, ok := value.(int64)
	if !ok {
		return fmt.Errorf("not an integer value: %v", value)
	}

	tVal := time.Unix(iVal, 0)
	*ts = Timestamp(tVal)
	return nil
}

func (ts Timestamp) Time() time.Time {
	return time.Time(ts)
}
