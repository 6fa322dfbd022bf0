package navigation

import (
	"fmt"
	"strings"
)

// Phrasebook is the per-language set of command keywords and feedback texts.
type Phrasebook struct {
	Language string

	// Keywords matched as case-insensitive substrings of an utterance.
	Activate  []string
	Exit      []string
	CloudMode []string
	LocalMode []string
	Detect    []string

	// Labels translates detector class names; missing ones are spoken as-is.
	Labels map[string]string

	// Positions describe where the object is ("on your left").
	Positions map[Direction]string
	// Directions are the bare direction words used in detector replies.
	Directions map[Direction]string
	// Instructions tell the user how to avoid the object.
	Instructions map[Direction]string

	Started         string
	Stopping        string
	CloudModeOn     string
	LocalModeOn     string
	NoSignal        string
	PathClear       string
	NoObstacle      string
	Consulting      string
	CloudStatus     string // formatted with the HTTP status code
	CloudConnection string
	CloudBadReply   string
	Unavailable     string
	FileNotFound    string // formatted with the file path

	// navigation is formatted with label, steps, position, instruction.
	navigation string
	// report is formatted with label, steps, direction word.
	report string
}

// Label translates a detector class name.
func (p Phrasebook) Label(class string) string {
	if t, ok := p.Labels[class]; ok {
		return t
	}
	return class
}

// Navigation builds the sentence for an object steps away in direction d.
func (p Phrasebook) Navigation(class string, steps int, d Direction) string {
	return fmt.Sprintf(p.navigation, p.Label(class), steps, p.Positions[d], p.Instructions[d])
}

// Report builds the detector service's reply for the nearest object. It
// names the direction but leaves the avoidance instruction to the client.
func (p Phrasebook) Report(class string, steps int, d Direction) string {
	return fmt.Sprintf(p.report, p.Label(class), steps, p.Directions[d])
}

// CloudError is spoken when the detector service answers with a failure status.
func (p Phrasebook) CloudError(status int) string {
	return fmt.Sprintf(p.CloudStatus, status)
}

// MissingFile is spoken instead of an audio prompt that cannot be found.
func (p Phrasebook) MissingFile(path string) string {
	return fmt.Sprintf(p.FileNotFound, path)
}

// Enrich appends an avoidance instruction to a detector reply that names a
// direction but gives no instruction. Other replies are returned unchanged.
func (p Phrasebook) Enrich(msg string) string {
	lower := strings.ToLower(msg)
	for _, in := range p.Instructions {
		if strings.Contains(lower, strings.ToLower(in)) {
			return msg
		}
	}
	// Left before right: in some languages one word contains the other.
	for _, d := range []Direction{Left, Right, Center} {
		for _, word := range []string{p.Directions[d], p.Positions[d]} {
			if word != "" && strings.Contains(lower, strings.ToLower(word)) {
				return strings.TrimSpace(msg) + " " + p.Instructions[d]
			}
		}
	}
	return msg
}

// Matches reports whether utterance contains any of the phrases.
func Matches(utterance string, phrases []string) bool {
	u := strings.ToLower(utterance)
	for _, ph := range phrases {
		if strings.Contains(u, strings.ToLower(ph)) {
			return true
		}
	}
	return false
}

// PortugueseBR is the default phrasebook; the prompts and keywords were tuned in pt-BR.
func PortugueseBR() Phrasebook {
	return Phrasebook{
		Language:  "pt-BR",
		Activate:  []string{"ativar", "iniciar"},
		Exit:      []string{"sair", "encerrar"},
		CloudMode: []string{"modo nuvem", "modo aws"},
		LocalMode: []string{"modo local", "modo pc"},
		Detect:    []string{"frente", "o que", "oque", "vejo", "olhe"},
		Labels: map[string]string{
			"person": "pessoa", "chair": "cadeira", "bottle": "garrafa",
			"laptop": "notebook", "cell phone": "celular", "cup": "copo",
			"tv": "televisão", "mouse": "mouse", "keyboard": "teclado",
			"book": "livro", "dining table": "mesa", "door": "porta",
			"car": "carro", "bicycle": "bicicleta", "dog": "cachorro",
			"bench": "banco", "potted plant": "vaso de planta",
		},
		Positions: map[Direction]string{
			Left: "à sua esquerda", Center: "na sua frente", Right: "à sua direita",
		},
		Directions: map[Direction]string{
			Left: "esquerda", Center: "centro", Right: "direita",
		},
		Instructions: map[Direction]string{
			Left:   "Vire levemente à direita.",
			Center: "Desvie para a direita ou esquerda.",
			Right:  "Vire levemente à esquerda.",
		},
		Started:         "Sistema iniciado",
		Stopping:        "Sistema encerrando",
		CloudModeOn:     "Ativando modo nuvem",
		LocalModeOn:     "Ativando modo local",
		NoSignal:        "Câmera sem sinal",
		PathClear:       "Caminho livre.",
		NoObstacle:      "Caminho livre, nenhum obstáculo detectado.",
		Consulting:      "Consultando nuvem...",
		CloudStatus:     "Erro nuvem: %d",
		CloudConnection: "Erro de conexão com a nuvem.",
		CloudBadReply:   "Erro na resposta",
		Unavailable:     "Detector local indisponível.",
		FileNotFound:    "Arquivo %s não encontrado",
		navigation:      "%s a %d passos, %s. %s",
		report:          "%s a %d passos, direção %s.",
	}
}

// EnglishUS is the English phrasebook.
func EnglishUS() Phrasebook {
	return Phrasebook{
		Language:  "en-US",
		Activate:  []string{"activate", "start"},
		Exit:      []string{"exit", "stop"},
		CloudMode: []string{"cloud mode"},
		LocalMode: []string{"local mode"},
		Detect:    []string{"ahead", "what", "see", "look"},
		Positions: map[Direction]string{
			Left: "on your left", Center: "in front of you", Right: "on your right",
		},
		Directions: map[Direction]string{
			Left: "left", Center: "center", Right: "right",
		},
		Instructions: map[Direction]string{
			Left:   "Steer slightly right.",
			Center: "Steer to either side.",
			Right:  "Steer slightly left.",
		},
		Started:         "System started",
		Stopping:        "System shutting down",
		CloudModeOn:     "Cloud mode on",
		LocalModeOn:     "Local mode on",
		NoSignal:        "No camera signal",
		PathClear:       "Path clear.",
		NoObstacle:      "Path clear, no obstacle detected.",
		Consulting:      "Consulting the cloud...",
		CloudStatus:     "Cloud error: %d",
		CloudConnection: "Cloud connection error.",
		CloudBadReply:   "Bad reply from the cloud",
		Unavailable:     "Local detector unavailable.",
		FileNotFound:    "File %s not found",
		navigation:      "%s %d steps away, %s. %s",
		report:          "%s %d steps away, direction %s.",
	}
}

// ForLanguage returns the phrasebook for a BCP 47 tag, falling back to pt-BR.
func ForLanguage(tag string) Phrasebook {
	if strings.HasPrefix(strings.ToLower(tag), "en") {
		return EnglishUS()
	}
	return PortugueseBR()
}
