package bot

// Mode selects which backend capability and cardinality rules apply to a
// conversation's subsequent input. Stored per chat, survives restarts.
type Mode string

const (
	ModeText     Mode = "text"      // plain chat, optional single photo analysis
	ModeImage1   Mode = "image1"    // edit 1-10 photos with gpt-image-1
	ModeImage15  Mode = "image15"   // edit 1-10 photos with gpt-image-1.5
	ModeDalle    Mode = "dalle"     // edit a single photo with DALL-E 2
	ModeCreate   Mode = "create"    // text-to-image with gpt-image-1.5
	ModeDalleGen Mode = "dalle_gen" // text-to-image with DALL-E 2
)

// DefaultMode is assigned on first contact with a chat.
const DefaultMode = ModeText

// opKind classifies which backend operation a mode maps to.
type opKind int

const (
	opChat opKind = iota
	opEdit
	opGenerate
)

// modeRule is one row of the mode table: which model to call, how many
// images a request may carry, how batches are truncated, and the prompt
// length limit. Adding a mode is a new table entry, not new branches.
type modeRule struct {
	Label         string // user-facing model name
	Model         string // backend model identifier
	Kind          opKind
	MaxImages     int  // images per dispatched request; 0 = text only
	KeepFirst     bool // truncate a request to the first MaxImages instead of the last
	ReplaceBuffer bool // a new image batch replaces buffered images instead of appending
	PromptLimit   int  // instructions longer than this are truncated
}

var modeRules = map[Mode]modeRule{
	ModeText: {
		Label:         "gpt-5.2",
		Model:         "gpt-5.2",
		Kind:          opChat,
		MaxImages:     1,
		KeepFirst:     true,
		ReplaceBuffer: true,
		PromptLimit:   4000,
	},
	ModeImage1: {
		Label:       "gpt-image-1",
		Model:       "gpt-image-1",
		Kind:        opEdit,
		MaxImages:   10,
		PromptLimit: 4000,
	},
	ModeImage15: {
		Label:       "gpt-image-1.5",
		Model:       "gpt-image-1.5",
		Kind:        opEdit,
		MaxImages:   10,
		PromptLimit: 4000,
	},
	ModeDalle: {
		Label:       "DALL-E 2",
		Model:       "dall-e-2",
		Kind:        opEdit,
		MaxImages:   1,
		KeepFirst:   true,
		PromptLimit: 4000,
	},
	ModeCreate: {
		Label:       "gpt-image-1.5 (create)",
		Model:       "gpt-image-1.5",
		Kind:        opGenerate,
		PromptLimit: 4000,
	},
	ModeDalleGen: {
		Label:       "DALL-E 2 (create)",
		Model:       "dall-e-2",
		Kind:        opGenerate,
		PromptLimit: 1000,
	},
}

// ruleFor returns the mode rule for m, falling back to the default mode's
// rule for unknown values (e.g. a mode persisted by a newer version).
func ruleFor(m Mode) modeRule {
	if r, ok := modeRules[m]; ok {
		return r
	}
	return modeRules[DefaultMode]
}

// modeCommands maps bot commands to the mode they activate.
var modeCommands = map[string]Mode{
	"text":      ModeText,
	"image1":    ModeImage1,
	"image15":   ModeImage15,
	"dalle":     ModeDalle,
	"create":    ModeCreate,
	"dalle_gen": ModeDalleGen,
}
