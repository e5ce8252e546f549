package cli

// This file contains the query command for running jq expressions over a
// report.

import (
	"encoding/json"
	"fmt"

	"github.com/playtest/playtest/viewer"
	"github.com/urfave/cli/v2"
)

// parseQueryArgs splits the arguments of query into the report selector and
// the jq expression. The expression is always the last argument.
func parseQueryArgs(in []string) (idArg, expr string, err error) {
	in = removeFirstDashDash(in)
	switch len(in) {
	case 1:
		return "0", in[0], nil
	case 2:
		return in[0], in[1], nil
	}
	return "", "", fmt.Errorf("expected [INDEX|PATH|NAME|SESSION-ID] EXPR, got %d arguments", len(in))
}

func (a *App) query(ctx *cli.Context) error {
	arg, expr, err := parseQueryArgs(ctx.Args().Slice())
	if err != nil {
		return err
	}

	path, err := a.resolveReport(ctx, arg)
	if err != nil {
		return err
	}
	data, err := viewer.LoadRaw(path)
	if err != nil {
		return err
	}

	results, err := viewer.Query(path, data, expr)
	if err != nil {
		return err
	}

	w := ctx.App.Writer
	for _, v := range results {
		if s, ok := v.(string); ok {
			fmt.Fprintln(w, s)
			continue
		}
		out, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintln(w, string(out))
	}
	return nil
}
