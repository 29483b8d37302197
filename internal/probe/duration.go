package probe

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration in the h:mm:ss.mmm form DIDL-Lite
// res@duration attributes use.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	return fmt.Sprintf("%d:%02d:%02d.%03d",
		ms/3600000, ms/60000%60, ms/1000%60, ms%1000)
}
