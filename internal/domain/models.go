package domain

// Domain contains core models shared by the fetch client, state machine and renderers.

// DogPayload is a single random dog returned by the dog API.
type DogPayload struct {
	Breed    string `json:"breed"`
	ImageURL string `json:"image_url"`
}
