package tokenizer

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Vocab maps token text to id.
type Vocab map[string]int

// LoadVocab reads a WordPiece vocab.txt where the line number is the id.
func LoadVocab(path string) (Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	vocab := make(Vocab, 32000)
	idx := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tok := strings.TrimRight(scanner.Text(), "\r")
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = idx
		}
		idx++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vocab %s: %w", path, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", path)
	}
	return vocab, nil
}

// LoadJSONVocab reads a BPE vocab.json ({"token": id, ...}).
func LoadJSONVocab(path string) (Vocab, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var vocab Vocab
	if err := json.Unmarshal(b, &vocab); err != nil {
		return nil, fmt.Errorf("decode vocab %s: %w", path, err)
	}
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocab %s is empty", path)
	}
	return vocab, nil
}

// Lookup returns the first of names present in the vocab, or NoToken.
func (v Vocab) Lookup(names ...string) Token {
	for _, n := range names {
		if id, ok := v[n]; ok {
			return Token{Text: n, ID: id}
		}
	}
	if len(names) > 0 {
		return Token{Text: names[0], ID: NoToken}
	}
	return Token{ID: NoToken}
}
