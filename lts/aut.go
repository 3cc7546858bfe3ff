package lts

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReadAUT parses the mCRL2 toolset's ".aut" textual LTS format:
//
//	des (initial, numTransitions, numStates)
//	(from,"label",to)
//	(from,"label",to)
//	...
//
// Labels are interned in first-seen order; the label that appears spelled
// "tau" (case-insensitive) becomes the tau label. If no such label appears,
// one extra, unused label is appended to the alphabet and made Tau (an LTS
// with no invisible transitions at all still needs a Tau value to satisfy
// Validate).
//
// This is a minimal ambient I/O surface so cmd/bisim has something to
// read and write; the reduction engine itself never parses files.
func ReadAUT(r io.Reader) (*LTS, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		return nil, errors.New("lts: empty aut file")
	}
	header := strings.TrimSpace(sc.Text())
	initial, numTrans, numStates, err := parseAUTHeader(header)
	if err != nil {
		return nil, errors.Wrap(err, "lts: parsing aut header")
	}

	l := &LTS{
		NumStates:   numStates,
		Initial:     initial,
		Transitions: make([]Transition, 0, numTrans),
	}
	labelIDs := map[string]Label{}
	haveTau := false

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		from, label, to, err := parseAUTLine(line)
		if err != nil {
			return nil, errors.Wrapf(err, "lts: parsing aut transition %q", line)
		}
		id, ok := labelIDs[label]
		if !ok {
			id = Label(len(labelIDs))
			labelIDs[label] = id
			if strings.EqualFold(label, "tau") {
				l.Tau = id
				haveTau = true
			}
		}
		if to+1 > l.NumStates {
			l.NumStates = to + 1
		}
		if from+1 > l.NumStates {
			l.NumStates = from + 1
		}
		l.Transitions = append(l.Transitions, Transition{From: from, Label: id, To: to})
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, "lts: reading aut body")
	}
	l.NumLabels = len(labelIDs)
	if l.NumLabels == 0 {
		l.NumLabels = 1
	}
	if !haveTau {
		// No label spelled "tau" occurred; label 0 cannot be relied on to
		// be invisible, but Validate requires some Tau in range, so we
		// reserve an unused synthetic slot.
		l.Tau = Label(l.NumLabels)
		l.NumLabels++
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return l, nil
}

func parseAUTHeader(line string) (initial, numTrans, numStates int, err error) {
	line = strings.TrimPrefix(line, "des")
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "(")
	line = strings.TrimSuffix(line, ")")
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 comma-separated fields, got %d", len(parts))
	}
	initial, err = strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "initial state")
	}
	numTrans, err = strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "transition count")
	}
	numStates, err = strconv.Atoi(strings.TrimSpace(parts[2]))
	if err != nil {
		return 0, 0, 0, errors.Wrap(err, "state count")
	}
	return initial, numTrans, numStates, nil
}

func parseAUTLine(line string) (from int, label string, to int, err error) {
	line = strings.TrimPrefix(line, "(")
	line = strings.TrimSuffix(line, ")")

	firstComma := strings.IndexByte(line, ',')
	if firstComma < 0 {
		return 0, "", 0, errors.New("missing field separator")
	}
	lastComma := strings.LastIndexByte(line, ',')
	if lastComma == firstComma {
		return 0, "", 0, errors.New("missing second field separator")
	}

	from, err = strconv.Atoi(strings.TrimSpace(line[:firstComma]))
	if err != nil {
		return 0, "", 0, errors.Wrap(err, "source state")
	}
	to, err = strconv.Atoi(strings.TrimSpace(line[lastComma+1:]))
	if err != nil {
		return 0, "", 0, errors.Wrap(err, "target state")
	}
	label = strings.TrimSpace(line[firstComma+1 : lastComma])
	label = strings.TrimPrefix(label, `"`)
	label = strings.TrimSuffix(label, `"`)
	return from, label, to, nil
}

// WriteAUT writes l in the ".aut" format. Label text is recovered
// positionally: since LTS stores only label indices, callers that care
// about label spelling should keep their own index->name table and pass it
// via WriteAUTWithNames; WriteAUT emits "a<index>" for every label except
// Tau, which is emitted as "tau".
func WriteAUT(w io.Writer, l *LTS) error {
	names := make([]string, l.NumLabels)
	for i := range names {
		if Label(i) == l.Tau {
			names[i] = "tau"
		} else {
			names[i] = fmt.Sprintf("a%d", i)
		}
	}
	return WriteAUTWithNames(w, l, names)
}

// WriteAUTWithNames writes l using the provided label names (indexed by
// Label). len(names) must equal l.NumLabels.
func WriteAUTWithNames(w io.Writer, l *LTS, names []string) error {
	if len(names) != l.NumLabels {
		return errors.New("lts: names slice length mismatches label count")
	}
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "des (%d,%d,%d)\n", l.Initial, len(l.Transitions), l.NumStates); err != nil {
		return err
	}
	for _, t := range l.Transitions {
		if _, err := fmt.Fprintf(bw, "(%d,%q,%d)\n", t.From, names[t.Label], t.To); err != nil {
			return err
		}
	}
	return bw.Flush()
}
