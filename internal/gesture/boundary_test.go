package gesture

import (
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// The recognizers are pure state machines fed by the session loop. They must
// never grow a dependency on the transport or the control API.
func TestNoForbiddenImports(t *testing.T) {
	cfg := &packages.Config{Mode: packages.NeedImports}
	pkgs, err := packages.Load(cfg, "github.com/lifeboat-sh/lifeboat/internal/gesture")
	if err != nil {
		t.Fatalf("failed to load package: %v", err)
	}

	forbiddenPatterns := []string{
		"net/http",
		"github.com/go-chi/chi",
		"github.com/lifeboat-sh/lifeboat/internal/api",
		"github.com/lifeboat-sh/lifeboat/internal/session",
	}

	for _, pkg := range pkgs {
		for imp := range pkg.Imports {
			for _, pattern := range forbiddenPatterns {
				if strings.Contains(imp, pattern) {
					t.Errorf("forbidden import in recognizer package: %s (matches pattern %s)", imp, pattern)
				}
			}
		}
	}
}
