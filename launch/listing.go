// Copyright 2026 The Corral Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/corralhq/corral/lib/docker"
	"github.com/corralhq/corral/session"
)

// List returns every running container corral manages, identified by
// the managed label. Containers started by anything else are invisible
// here no matter how corral-like their names look.
func List(ctx context.Context, client *docker.Client) ([]docker.ContainerInfo, error) {
	return client.List(ctx, session.LabelManaged+"=true", session.LabelWorkdir)
}

// PrintSessions writes a columnar listing of managed sessions.
func PrintSessions(w io.Writer, sessions []docker.ContainerInfo) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No corral sessions running.")
		return
	}

	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "SESSION\tDIRECTORY\tSTATUS")
	for _, info := range sessions {
		workdir := info.Workdir
		if workdir == "" {
			workdir = "-"
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\n", info.Name, workdir, info.Status)
	}
	writer.Flush()
}
