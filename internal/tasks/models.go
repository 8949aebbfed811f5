package tasks

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusSubmitted Status = "submitted"
	StatusDone      Status = "done"
)

// Task is one scheduled visit a helper writes a service note for.
type Task struct {
	ID          string `json:"id"`
	TaskDate    string `json:"task_date"`
	HelperName  string `json:"helper_name"`
	HelperEmail string `json:"helper_email,omitempty"`
	ClientName  string `json:"client_name"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Destination string `json:"destination,omitempty"`
	Status      Status `json:"status"`
}
