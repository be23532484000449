package models

import "time"

// Hackathon tech-stack choices.
var TeamTechStacks = map[string]struct{}{
	"dotnet": {},
	"java":   {},
	"python": {},
}

// Team bounds on member count.
const (
	TeamMinMembers = 4
	TeamMaxMembers = 7
)

// Team is a hackathon team tied to a physical table number.
type Team struct {
	TeamNumber int       `json:"team_number"`
	Name       string    `json:"name"`
	NumMembers int       `json:"num_members"`
	TechStack  string    `json:"tech_stack"`
	RepoURL    string    `json:"repo_url,omitempty"`
	EnvURL     string    `json:"env_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
