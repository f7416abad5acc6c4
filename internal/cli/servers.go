package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/aelexs/shmport/internal/domain"
	"github.com/aelexs/shmport/pkg/protocol"
)

// CreateCmd is 'rrctl create'. Zero and empty flags keep the service
// defaults.
type CreateCmd struct {
	AllocationStrategy           string `help:"static, best_fit or power_of_two."`
	InitialMaxSliceLen           uint   `help:"Initial number of elements per response slice."`
	MaxLoanedResponsesPerRequest uint   `help:"Responses loaned concurrently per request."`
	UnableToDeliverStrategy      string `help:"block or discard."`
}

// Run creates the server and prints its description.
func (c *CreateCmd) Run(ctx context.Context, env *Env) error {
	var req protocol.CreateServerRequest
	if c.AllocationStrategy != "" {
		req.AllocationStrategy = &c.AllocationStrategy
	}
	if c.InitialMaxSliceLen != 0 {
		req.InitialMaxSliceLen = &c.InitialMaxSliceLen
	}
	if c.MaxLoanedResponsesPerRequest != 0 {
		req.MaxLoanedResponsesPerRequest = &c.MaxLoanedResponsesPerRequest
	}
	if c.UnableToDeliverStrategy != "" {
		req.UnableToDeliverStrategy = &c.UnableToDeliverStrategy
	}

	info, err := env.Client.CreateServer(ctx, req)
	if err != nil {
		return err
	}
	return env.printServer(info)
}

// ListCmd is 'rrctl list'.
type ListCmd struct{}

// Run prints one line per server port.
func (c *ListCmd) Run(ctx context.Context, env *Env) error {
	list, err := env.Client.ListServers(ctx)
	if err != nil {
		return err
	}
	if env.JSON {
		return env.printJSON(list)
	}

	w := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "ID\tLOCALITY\tSLICE\tLOANS\tSEGMENT\tSIZE\n")
	for _, s := range list.Servers {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\n",
			s.ID, s.Locality, s.InitialMaxSliceLen, s.MaxLoanedResponsesPerRequest, s.Segment, s.SegmentSize)
	}
	fmt.Fprintf(w, "\n%d of %d servers\n", len(list.Servers), list.MaxServers)
	return w.Flush()
}

// GetCmd is 'rrctl get'.
type GetCmd struct {
	ID string `arg:"" help:"Server ID."`
}

// Run prints the server description.
func (c *GetCmd) Run(ctx context.Context, env *Env) error {
	info, err := env.Client.GetServer(ctx, c.ID)
	if err != nil {
		return err
	}
	return env.printServer(info)
}

// DropCmd is 'rrctl drop'.
type DropCmd struct {
	ID string `arg:"" help:"Server ID."`
}

// Run drops the server.
func (c *DropCmd) Run(ctx context.Context, env *Env) error {
	if err := env.Client.DropServer(ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "dropped %s\n", c.ID)
	return nil
}

func (e *Env) printServer(info protocol.ServerInfo) error {
	if e.JSON {
		return e.printJSON(info)
	}

	w := tabwriter.NewWriter(e.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id:\t%s\n", info.ID)
	fmt.Fprintf(w, "service:\t%s\n", info.ServiceName)
	fmt.Fprintf(w, "locality:\t%s\n", info.Locality)
	fmt.Fprintf(w, "allocation strategy:\t%s\n", info.AllocationStrategy)
	fmt.Fprintf(w, "initial max slice len:\t%d\n", info.InitialMaxSliceLen)
	fmt.Fprintf(w, "max loaned responses:\t%d\n", info.MaxLoanedResponsesPerRequest)
	fmt.Fprintf(w, "unable to deliver:\t%s\n", info.UnableToDeliverStrategy)
	fmt.Fprintf(w, "segment:\t%s (%d bytes)\n", info.Segment, info.SegmentSize)
	fmt.Fprintf(w, "created:\t%s\n", domain.FromMillis(info.CreatedAt).Format(time.RFC3339))
	return w.Flush()
}
