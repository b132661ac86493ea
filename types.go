package adventure

const (
	// MaxPromptLength bounds user-entered prompts, matching the on-chain limit.
	MaxPromptLength = 150

	// MaxOptionLength bounds each generated continuation.
	MaxOptionLength = 100

	// OptionCount is the number of continuations offered per round.
	OptionCount = 3
)

// StoryEntry is one committed line of a story, reconstructed from the ledger.
type StoryEntry struct {
	Index     uint64 `json:"index"`
	Prompt    string `json:"prompt"`
	Author    string `json:"author"`
	Timestamp int64  `json:"timestamp"`
	ImageCID  string `json:"imageCid,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Selected  bool   `json:"selected"`
}

// StoryOption is a candidate continuation presented to the visitor.
type StoryOption struct {
	Text  string `json:"text"`
	Image []byte `json:"image,omitempty"`
}

// ProfileCard is the displayable slice of a profile used when rendering
// story entries.
type ProfileCard struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}
