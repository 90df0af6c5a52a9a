package application

import (
	"context"
	"fmt"
	"os"

	"github.com/SECURESLOG/resolution-ai-sub002/pkg/domain/proposal"
)

// FileProposalGenerator reads proposals produced out of band from a JSON
// file in any shape ParseGeneration accepts.
type FileProposalGenerator struct {
	Path string
}

func NewFileProposalGenerator(path string) *FileProposalGenerator {
	return &FileProposalGenerator{Path: path}
}

func (g *FileProposalGenerator) Generate(ctx context.Context, _ GenerationInput) (*proposal.Generation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(g.Path)
	if err != nil {
		return nil, fmt.Errorf("read proposals file: %w", err)
	}
	return ParseGeneration(string(data))
}
