package model

import "time"

// SwitchTrigger identifies what caused a theme switch.
type SwitchTrigger string

const (
	TriggerCLI      SwitchTrigger = "cli"
	TriggerAPI      SwitchTrigger = "api"
	TriggerSchedule SwitchTrigger = "schedule"
	TriggerWatch    SwitchTrigger = "watch"
)

// SwitchRecord describes one applied theme change.
type SwitchRecord struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Theme     string        `json:"theme"`
	Scheme    string        `json:"scheme,omitempty"`
	PrevTheme string        `json:"prev_theme,omitempty"`
	Trigger   SwitchTrigger `json:"trigger"`
	Reverted  bool          `json:"reverted,omitempty"`
}

// Applied is the currently active theme as recorded in the config file.
type Applied struct {
	Theme  string `json:"theme,omitempty"`
	Scheme string `json:"scheme,omitempty"`
}

type ScheduleType string

const (
	ScheduleInterval ScheduleType = "interval"
	ScheduleDaily    ScheduleType = "daily"
)

// Schedule rotates the active theme automatically, e.g. a dark theme
// every evening.
type Schedule struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Enabled   bool         `json:"enabled"`
	Type      ScheduleType `json:"type"`
	Theme     string       `json:"theme"`
	Scheme    string       `json:"scheme,omitempty"`
	Every     string       `json:"every,omitempty"`       // Go duration, e.g. "12h"
	TimeOfDay string       `json:"time_of_day,omitempty"` // "HH:MM" local time
}
