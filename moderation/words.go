package moderation

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed censored/*.txt
var censoredFolder embed.FS

// LoadCensoredWords reads every embedded word list, one word per line.
// Blank lines and #-comments are skipped, duplicates removed.
func LoadCensoredWords() ([]string, error) {
	seen := make(map[string]struct{})
	var words []string

	err := fs.WalkDir(censoredFolder, "censored", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		f, err := censoredFolder.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			word := strings.TrimSpace(scanner.Text())
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			if _, ok := seen[word]; ok {
				continue
			}
			seen[word] = struct{}{}
			words = append(words, word)
		}
		return scanner.Err()
	})
	if err != nil {
		return nil, err
	}
	return words, nil
}
