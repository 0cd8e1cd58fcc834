package queue

const (
	TypeEpisodeProcess = "episode:process"
)

type EpisodeProcessPayload struct {
	EpisodeID     string `json:"episode_id"`
	GenerateCover bool   `json:"generate_cover"`
}
