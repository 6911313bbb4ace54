package db

import "time"

// ReconRun is one execution of the recon pipeline against a target.
type ReconRun struct {
	ID         string     `db:"id" json:"id"`
	Target     string     `db:"target" json:"target"`
	OutputFile string     `db:"output_file" json:"output_file"`
	Status     string     `db:"status" json:"status"`
	WebPorts   int        `db:"web_ports" json:"web_ports"`
	StartedAt  time.Time  `db:"started_at" json:"started_at"`
	FinishedAt *time.Time `db:"finished_at" json:"finished_at,omitempty"`
}

// WebService is a web port discovered during a run.
type WebService struct {
	RunID   string `db:"run_id" json:"run_id"`
	Port    int    `db:"port" json:"port"`
	Service string `db:"service" json:"service"`
}

// Dispatch is one feroxbuster invocation outcome.
type Dispatch struct {
	ID         string    `db:"id" json:"id"`
	RunID      string    `db:"run_id" json:"run_id"`
	Port       int       `db:"port" json:"port"`
	URL        string    `db:"url" json:"url"`
	OutputFile string    `db:"output_file" json:"output_file"`
	ExitCode   int       `db:"exit_code" json:"exit_code"`
	Error      string    `db:"error" json:"error"`
	FinishedAt time.Time `db:"finished_at" json:"finished_at"`
}
