package config

import "time"

const minInterval = time.Second

type Timer struct {
	Days    uint32 `yaml:"days"`
	Hours   uint32 `yaml:"hours"`
	Minutes uint32 `yaml:"minutes"`
	Seconds uint32 `yaml:"seconds"`
}

// Interval converts the timer to a duration of at least one second.
func (t Timer) Interval() time.Duration {
	d := time.Duration(t.Days)*24*time.Hour +
		time.Duration(t.Hours)*time.Hour +
		time.Duration(t.Minutes)*time.Minute +
		time.Duration(t.Seconds)*time.Second
	if d < minInterval {
		return minInterval
	}
	return d
}
