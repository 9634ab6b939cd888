package atmos

import (
	"time"
)

// maxFrameDt caps the per-frame delta so a long stall (window drag,
// debugger pause) does not fling every particle across the volume.
const maxFrameDt = 1.0 / 10.0

// Time is the frame clock resource. Dt and Elapsed are in seconds.
type Time struct {
	Now     time.Time
	Dt      float32
	Elapsed float64
}

type TimeModule struct{}

func (mod TimeModule) Install(app *App, cmd *Commands) {
	cmd.AddResources(&Time{
		Now: time.Now(),
	})
	app.UseSystem(
		System(timeSystem).
			InStage(Prelude),
	)
}

func timeSystem(clock *Time) {
	now := time.Now()
	dt := float32(now.Sub(clock.Now).Seconds())
	if dt > maxFrameDt {
		dt = maxFrameDt
	}
	clock.Now = now
	clock.Dt = dt
	clock.Elapsed += float64(dt)
}
