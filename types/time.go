package types

// RTCInfo appears as Info.Detail on hal/cap/time/rtc/<name>/info.
type RTCInfo struct {
	Chip string `json:"chip"` // "isl1208" | "ds1307"
	Bus  string `json:"bus"`
	Addr uint16 `json:"addr"`
}

// RTCValue is the retained value of the last successful read.
type RTCValue struct {
	Unix             int64  `json:"unix"`
	ISO              string `json:"iso"` // RFC 3339, UTC
	Weekday          uint8  `json:"weekday"`
	OscillatorFailed bool   `json:"oscillator_failed"`
	BatteryLow       bool   `json:"battery_low"`
	Reliable         bool   `json:"reliable"`
}

// RTCWritten is emitted on .../event/written after a successful write.
type RTCWritten struct {
	Unix int64 `json:"unix"`
}

// TimeState is the retained host time-source state on time/state.
type TimeState struct {
	Synced bool   `json:"synced"`
	Origin string `json:"origin,omitempty"` // e.g. "rtc/rtc0"
	Unix   int64  `json:"unix"`
	Offset int64  `json:"offset_ns"` // applied offset relative to the base clock
	TS     int64  `json:"ts_ns"`
}
