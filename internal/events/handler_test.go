package events

import "testing"

func validRequest() EventRequest {
	return EventRequest{
		Name:          "Level Up Chandler",
		Description:   "ASD-200-CMP",
		Location:      "Chandler, AZ",
		NumSeats:      120,
		StartDate:     "2024-01-01T10:00:00Z",
		EndDate:       "2024-01-01T12:00:00Z",
		LocalTimeZone: "America/Phoenix",
		Status:        "open",
	}
}

func TestEventRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*EventRequest)
		wantMsg bool
	}{
		{"valid", func(r *EventRequest) {}, false},
		{"bad start date", func(r *EventRequest) { r.StartDate = "2024-01-01 10:00" }, true},
		{"bad end date", func(r *EventRequest) { r.EndDate = "noon" }, true},
		{"end before start", func(r *EventRequest) { r.EndDate = "2024-01-01T09:00:00Z" }, true},
		{"end equals start", func(r *EventRequest) { r.EndDate = r.StartDate }, true},
		{"bad timezone", func(r *EventRequest) { r.LocalTimeZone = "Mars/Olympus" }, true},
		{"bad status", func(r *EventRequest) { r.Status = "pending" }, true},
		{"closed status ok", func(r *EventRequest) { r.Status = "closed" }, false},
		{"done status ok", func(r *EventRequest) { r.Status = "done" }, false},
	}
	for _, tt := range tests {
		req := validRequest()
		tt.mutate(&req)
		start, end, msg := req.validate()
		if (msg != "") != tt.wantMsg {
			t.Errorf("%s: msg = %q", tt.name, msg)
		}
		if !tt.wantMsg && msg == "" {
			if !end.After(start) {
				t.Errorf("%s: parsed window invalid: %v .. %v", tt.name, start, end)
			}
		}
	}
}
