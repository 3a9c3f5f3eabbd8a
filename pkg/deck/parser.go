package deck

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/breadboard-eda/breadboard/internal/consts"
	"github.com/breadboard-eda/breadboard/pkg/device"
)

type AnalysisType int

const (
	AnalysisOP AnalysisType = iota
	AnalysisTRAN
	AnalysisAC
	AnalysisDC
)

func (t AnalysisType) String() string {
	switch t {
	case AnalysisTRAN:
		return "TRAN"
	case AnalysisAC:
		return "AC"
	case AnalysisDC:
		return "DC"
	default:
		return "OP"
	}
}

type TranParam struct {
	TStep  float64
	TStop  float64
	TStart float64
	TMax   float64
	UIC    bool
}

type ACParam struct {
	Sweep  string // DEC, OCT, LIN
	Points int
	FStart float64
	FStop  float64
}

type DCParam struct {
	Source1    string
	Start1     float64
	Stop1      float64
	Increment1 float64
	Source2    string
	Start2     float64
	Stop2      float64
	Increment2 float64
}

// Deck is a parsed SPICE deck. Exactly one analysis per deck; a deck
// that names none is an operating-point deck.
type Deck struct {
	Title     string
	Elements  []Element
	Models    map[string]device.ModelParam
	Analysis  AnalysisType
	TranParam TranParam
	ACParam   ACParam
	DCParam   DCParam
	Temp      float64 // Kelvin, 0 means engine default
	Params    Params
}

type Element struct {
	Type   string // R, C, L, D, Q, M, V, I
	Name   string
	Nodes  []string
	Value  float64
	Params map[string]string
}

var wsRe = regexp.MustCompile(`\s+`)

var modelTypes = map[string]bool{
	"D":    true,
	"NPN":  true,
	"PNP":  true,
	"NMOS": true,
	"PMOS": true,
}

type parser struct {
	deck     *Deck
	line     int // first line of the card being parsed
	analyses int
	seen     map[string]bool
	done     bool
}

func (p *parser) errf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.line, fmt.Sprintf(format, args...))
}

// Parse reads a deck: title on the first line, then cards. "*" lines
// are comments, ";" starts an inline comment, "+" continues the
// previous card, ".end" stops parsing.
func Parse(input string) (*Deck, error) {
	p := &parser{
		deck: &Deck{
			Models: make(map[string]device.ModelParam),
			Params: make(Params),
		},
		seen: make(map[string]bool),
	}

	scanner := bufio.NewScanner(strings.NewReader(input))
	lineNo := 0

	if scanner.Scan() {
		lineNo = 1
		title := strings.TrimPrefix(scanner.Text(), "*")
		p.deck.Title = strings.TrimSpace(title)
	}

	var currentLine string
	var cardLine int

	flush := func() error {
		if currentLine == "" {
			return nil
		}
		p.line = cardLine
		err := p.parseCard(currentLine)
		currentLine = ""
		return err
	}

	for scanner.Scan() && !p.done {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if len(line) == 0 || strings.HasPrefix(line, "*") {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}

		if idx := strings.Index(line, ";"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
			if len(line) == 0 {
				continue
			}
		}

		if strings.HasPrefix(line, "+") {
			if currentLine == "" {
				return nil, fmt.Errorf("line %d: continuation with nothing to continue", lineNo)
			}
			currentLine += " " + strings.TrimSpace(line[1:])
			continue
		}

		if err := flush(); err != nil {
			return nil, err
		}
		currentLine = line
		cardLine = lineNo
	}

	if !p.done {
		if err := flush(); err != nil {
			return nil, err
		}
	}

	return p.deck, nil
}

func (p *parser) parseCard(card string) error {
	card = wsRe.ReplaceAllString(card, " ")

	if strings.HasPrefix(card, ".") {
		return p.parseDot(card)
	}

	elem, err := p.parseElement(card)
	if err != nil {
		return err
	}

	if p.seen[elem.Name] {
		return p.errf("duplicate element name: %s", elem.Name)
	}
	p.seen[elem.Name] = true

	p.deck.Elements = append(p.deck.Elements, *elem)
	return nil
}

func (p *parser) setAnalysis(t AnalysisType) error {
	p.analyses++
	if p.analyses > 1 {
		return p.errf("multiple analysis cards, a deck carries exactly one")
	}
	p.deck.Analysis = t
	return nil
}

func (p *parser) value(tok string) (float64, error) {
	v, err := resolveValue(tok, p.deck.Params)
	if err != nil {
		return 0, p.errf("%v", err)
	}
	return v, nil
}

// paramToken resolves a {…} brace to a plain number so later device
// construction never needs the parameter table.
func (p *parser) paramToken(tok string) (string, error) {
	if !strings.HasPrefix(tok, "{") {
		return tok, nil
	}
	v, err := resolveValue(tok, p.deck.Params)
	if err != nil {
		return "", p.errf("%v", err)
	}
	return strconv.FormatFloat(v, 'g', -1, 64), nil
}

func (p *parser) parseDot(card string) error {
	fields := strings.Fields(card)
	var err error

	switch strings.ToLower(fields[0]) {
	case ".end":
		p.done = true
		return nil

	case ".model":
		return p.parseModel(fields[1:])

	case ".param":
		if err := parseParamCard(strings.TrimSpace(card[len(".param"):]), p.deck.Params); err != nil {
			return p.errf("%v", err)
		}
		return nil

	case ".temp":
		if len(fields) < 2 {
			return p.errf("missing temperature")
		}
		tc, err := p.value(fields[1])
		if err != nil {
			return err
		}
		p.deck.Temp = tc + consts.KELVIN
		return nil

	case ".op":
		return p.setAnalysis(AnalysisOP)

	case ".tran":
		if err := p.setAnalysis(AnalysisTRAN); err != nil {
			return err
		}
		if len(fields) < 3 {
			return p.errf("insufficient tran parameters, need at least tstep and tstop")
		}
		p.deck.TranParam.TStep, err = p.value(fields[1])
		if err != nil {
			return err
		}
		p.deck.TranParam.TStop, err = p.value(fields[2])
		if err != nil {
			return err
		}

		pos := 0
		for _, f := range fields[3:] {
			if strings.EqualFold(f, "uic") {
				p.deck.TranParam.UIC = true
				continue
			}
			switch pos {
			case 0:
				p.deck.TranParam.TStart, err = p.value(f)
			case 1:
				p.deck.TranParam.TMax, err = p.value(f)
			default:
				return p.errf("too many tran parameters")
			}
			if err != nil {
				return err
			}
			pos++
		}
		if p.deck.TranParam.TMax == 0 {
			p.deck.TranParam.TMax = p.deck.TranParam.TStep
		}
		return nil

	case ".ac":
		if err := p.setAnalysis(AnalysisAC); err != nil {
			return err
		}
		if len(fields) < 5 {
			return p.errf("insufficient AC parameters, need sweep type, points, fstart and fstop")
		}

		p.deck.ACParam.Sweep = strings.ToUpper(fields[1])
		switch p.deck.ACParam.Sweep {
		case "DEC", "OCT", "LIN":
		default:
			return p.errf("invalid sweep type: %s", fields[1])
		}

		p.deck.ACParam.Points, err = strconv.Atoi(fields[2])
		if err != nil || p.deck.ACParam.Points < 1 {
			return p.errf("invalid points number: %s", fields[2])
		}
		p.deck.ACParam.FStart, err = p.value(fields[3])
		if err != nil {
			return err
		}
		p.deck.ACParam.FStop, err = p.value(fields[4])
		if err != nil {
			return err
		}
		return nil

	case ".dc":
		if err := p.setAnalysis(AnalysisDC); err != nil {
			return err
		}
		if len(fields) < 5 {
			return p.errf("insufficient DC sweep parameters")
		}

		p.deck.DCParam.Source1 = fields[1]
		p.deck.DCParam.Start1, err = p.value(fields[2])
		if err != nil {
			return err
		}
		p.deck.DCParam.Stop1, err = p.value(fields[3])
		if err != nil {
			return err
		}
		p.deck.DCParam.Increment1, err = p.value(fields[4])
		if err != nil {
			return err
		}
		if p.deck.DCParam.Increment1 == 0 {
			return p.errf("zero sweep increment")
		}

		if len(fields) > 5 {
			if len(fields) < 9 {
				return p.errf("second sweep source needs start, stop and increment")
			}
			p.deck.DCParam.Source2 = fields[5]
			p.deck.DCParam.Start2, err = p.value(fields[6])
			if err != nil {
				return err
			}
			p.deck.DCParam.Stop2, err = p.value(fields[7])
			if err != nil {
				return err
			}
			p.deck.DCParam.Increment2, err = p.value(fields[8])
			if err != nil {
				return err
			}
			if p.deck.DCParam.Increment2 == 0 {
				return p.errf("zero sweep increment")
			}
		}
		return nil

	default:
		return p.errf("unknown directive: %s", fields[0])
	}
}

func (p *parser) parseModel(fields []string) error {
	if len(fields) < 2 {
		return p.errf("insufficient model parameters")
	}

	name := fields[0]
	rest := strings.Join(fields[1:], " ")

	var typeName, paramStr string
	if i := strings.Index(rest, "("); i >= 0 {
		typeName = strings.TrimSpace(rest[:i])
		paramStr = strings.TrimSuffix(strings.TrimSpace(rest[i+1:]), ")")
	} else {
		parts := strings.Fields(rest)
		typeName = parts[0]
		paramStr = strings.Join(parts[1:], " ")
	}

	typeName = strings.ToUpper(typeName)
	if !modelTypes[typeName] {
		return p.errf("unsupported model type: %s", typeName)
	}
	if _, exists := p.deck.Models[name]; exists {
		return p.errf("duplicate model: %s", name)
	}

	params := make(map[string]float64)
	for _, pair := range strings.Fields(paramStr) {
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		v, err := resolveValue(strings.TrimSpace(kv[1]), p.deck.Params)
		if err != nil {
			return p.errf("model %s parameter %s: %v", name, pair, err)
		}
		params[strings.ToLower(strings.TrimSpace(kv[0]))] = v
	}

	p.deck.Models[name] = device.ModelParam{
		Type:   typeName,
		Name:   name,
		Params: params,
	}
	return nil
}

func (p *parser) parseElement(card string) (*Element, error) {
	fields := strings.Fields(card)
	if len(fields) < 3 {
		return nil, p.errf("invalid element: %s", card)
	}

	elem := &Element{
		Name:   fields[0],
		Type:   strings.ToUpper(string(fields[0][0])),
		Params: make(map[string]string),
	}

	switch elem.Type {
	case "R", "C", "L":
		if len(fields) < 4 {
			return nil, p.errf("%s needs two nodes and a value", elem.Name)
		}
		elem.Nodes = fields[1:3]
		v, err := p.value(fields[3])
		if err != nil {
			return nil, err
		}
		elem.Value = v
		if err := p.collectParams(elem, fields[4:]); err != nil {
			return nil, err
		}
		return elem, nil

	case "D":
		elem.Nodes = fields[1:3]
		if len(fields) > 3 {
			elem.Params["model"] = fields[3]
		}
		return elem, nil

	case "Q":
		if len(fields) < 5 {
			return nil, p.errf("%s needs three nodes and a model", elem.Name)
		}
		elem.Nodes = fields[1:4]
		elem.Params["model"] = fields[4]
		return elem, nil

	case "M":
		if len(fields) < 6 {
			return nil, p.errf("%s needs four nodes and a model", elem.Name)
		}
		elem.Nodes = fields[1:5]
		elem.Params["model"] = fields[5]
		if err := p.collectParams(elem, fields[6:]); err != nil {
			return nil, err
		}
		return elem, nil

	case "V", "I":
		return p.parseSource(elem, fields)

	case "K":
		return nil, p.errf("mutual inductors are not supported")

	default:
		return nil, p.errf("unsupported device type: %s", elem.Type)
	}
}

// collectParams gathers trailing k=v pairs (tc1=…, w=…, l=…), braces
// resolved.
func (p *parser) collectParams(elem *Element, fields []string) error {
	for _, f := range fields {
		kv := strings.SplitN(f, "=", 2)
		if len(kv) != 2 {
			return p.errf("%s: expected name=value, got %q", elem.Name, f)
		}
		tok, err := p.paramToken(kv[1])
		if err != nil {
			return err
		}
		elem.Params[strings.ToLower(kv[0])] = tok
	}
	return nil
}

func (p *parser) parseSource(elem *Element, fields []string) (*Element, error) {
	if len(fields) < 4 {
		return nil, p.errf("insufficient source parameters for %s", elem.Name)
	}
	elem.Nodes = []string{fields[1], fields[2]}

	remaining := strings.Join(fields[3:], " ")
	remaining = strings.ReplaceAll(remaining, "(", " ( ")
	remaining = strings.ReplaceAll(remaining, ")", " ) ")
	words := strings.Fields(remaining)
	if len(words) == 0 {
		return nil, p.errf("missing source spec for %s", elem.Name)
	}

	switch strings.ToUpper(words[0]) {
	case "DC":
		if len(words) < 2 {
			return nil, p.errf("missing DC value for %s", elem.Name)
		}
		v, err := p.value(words[1])
		if err != nil {
			return nil, err
		}
		elem.Params["type"] = "dc"
		elem.Value = v

	case "SIN":
		elem.Params["type"] = "sin"
		body, err := p.waveBody(words[1:])
		if err != nil {
			return nil, err
		}
		elem.Params["sin"] = body

	case "PULSE":
		elem.Params["type"] = "pulse"
		body, err := p.waveBody(words[1:])
		if err != nil {
			return nil, err
		}
		elem.Params["pulse"] = body

	case "PWL":
		elem.Params["type"] = "pwl"
		body, err := p.waveBody(words[1:])
		if err != nil {
			return nil, err
		}
		elem.Params["pwl"] = body

	case "AC":
		if len(words) < 2 {
			return nil, p.errf("missing AC magnitude for %s", elem.Name)
		}
		mag, err := p.value(words[1])
		if err != nil {
			return nil, err
		}
		elem.Params["type"] = "ac"
		elem.Value = mag
		elem.Params["phase"] = "0"
		if len(words) > 2 {
			elem.Params["phase"] = words[2]
		}

	default:
		// A bare value is a DC source.
		v, err := resolveValue(words[0], p.deck.Params)
		if err != nil {
			return nil, p.errf("unsupported source spec for %s: %s", elem.Name, words[0])
		}
		elem.Params["type"] = "dc"
		elem.Value = v
	}

	return elem, nil
}

// waveBody strips the parentheses around SIN/PULSE/PWL parameters and
// resolves any braced tokens.
func (p *parser) waveBody(words []string) (string, error) {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w == "(" || w == ")" {
			continue
		}
		tok, err := p.paramToken(w)
		if err != nil {
			return "", err
		}
		out = append(out, tok)
	}
	return strings.Join(out, " "), nil
}
