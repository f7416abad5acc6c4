package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/alecthomas/kong"

	"github.com/aelexs/shmport/pkg/protocol"
)

// Root is the rrctl command tree.
type Root struct {
	Addr string `default:"http://127.0.0.1:8080" env:"RRCTL_ADDR" help:"Admin API address of rrserverd." placeholder:"URL"`
	JSON bool   `help:"Print responses as JSON."`

	Create CreateCmd `cmd:"" help:"Create a server port."`
	List   ListCmd   `cmd:"" help:"List server ports."`
	Get    GetCmd    `cmd:"" help:"Describe a server port."`
	Drop   DropCmd   `cmd:"" help:"Drop a server port."`
}

// Env is bound into every command's Run.
type Env struct {
	Client *protocol.Client
	Out    io.Writer
	JSON   bool
}

// Execute parses args and runs the selected command, printing to stdout.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	var root Root
	parser, err := kong.New(&root,
		kong.Name("rrctl"),
		kong.Description("Create, inspect and drop request/response server ports on rrserverd."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	return kctx.Run(&Env{
		Client: protocol.NewClient(root.Addr, nil),
		Out:    stdout,
		JSON:   root.JSON,
	})
}

func (e *Env) printJSON(v any) error {
	enc := json.NewEncoder(e.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
