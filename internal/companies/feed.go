package companies

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidCompany indicates a feed line that does not describe a company.
var ErrInvalidCompany = errors.New("invalid company")

const maxLine = 4 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required fields and the relations of every insight.
func (c Company) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidCompany, c.ID, err)
	}
	return nil
}

// ReadFeed decodes a JSON Lines feed, one company per line. Blank lines are
// skipped. The first malformed line stops the read with its line number.
func ReadFeed(ctx context.Context, r io.Reader) ([]Company, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxLine)

	var out []Company
	seen := make(map[string]int)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := strings.TrimSpace(sc.Text())
		if raw == "" {
			continue
		}

		var c Company
		if err := json.Unmarshal([]byte(raw), &c); err != nil {
			return nil, fmt.Errorf("%w: line %d: %w", ErrInvalidCompany, line, err)
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if prev, dup := seen[c.ID]; dup {
			return nil, fmt.Errorf("%w: line %d: duplicate id %s (first on line %d)", ErrInvalidCompany, line, c.ID, prev)
		}
		seen[c.ID] = line
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return out, nil
}
