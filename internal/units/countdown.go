package units

// Countdown is a duration in seconds that counts down once per tick.
// Every timer in the core (cooldowns, respawns, effect durations, combo
// cooldown, catch-up grant interval) is a Countdown so a snapshot only has to
// persist the remaining seconds.
type Countdown float64

// Set arms the countdown with the given number of seconds.
func (c *Countdown) Set(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	*c = Countdown(seconds)
}

// Tick advances the countdown by dt seconds, stopping at zero.
func (c *Countdown) Tick(dt float64) {
	if *c <= 0 {
		return
	}
	*c -= Countdown(dt)
	if *c < 0 {
		*c = 0
	}
}

// Ready reports whether the countdown has expired.
func (c Countdown) Ready() bool {
	return c <= 0
}

// Seconds returns the remaining time.
func (c Countdown) Seconds() float64 {
	if c < 0 {
		return 0
	}
	return float64(c)
}
