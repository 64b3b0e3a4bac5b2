package app

import (
	"github.com/seqsim/gridrunner/internal/registry"
	"github.com/seqsim/gridrunner/modules/archive"
	"github.com/seqsim/gridrunner/modules/environment"
	"github.com/seqsim/gridrunner/modules/exec"
	"github.com/seqsim/gridrunner/modules/httpclient"
	"github.com/seqsim/gridrunner/modules/notify"
	"github.com/seqsim/gridrunner/modules/print"
	"github.com/seqsim/gridrunner/modules/scratchdir"
)

// coreModules is the definitive list of all modules compiled into the
// gridrunner binary. Modules needing shared services receive them here.
func (a *App) coreModules() []registry.Module {
	return []registry.Module{
		&exec.Module{Guard: a.guard},
		&print.Module{Out: a.outW},
		&environment.Module{},
		&archive.Module{},
		&notify.Module{},
		&httpclient.Module{},
		&scratchdir.Module{},
	}
}
