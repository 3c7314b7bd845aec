package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dsimlab/distsim/packages/topology"
)

var (
	topoNodeCount int
	topoType      string
	topoSeed      int64
)

var topologyCmd = &cobra.Command{
	Use:   "topology",
	Short: "Generate and print a network topology",
	Run: func(cmd *cobra.Command, args []string) {
		g, err := topology.Generate(topoNodeCount, topology.Type(topoType), topoSeed)
		if err != nil {
			logrus.Fatalf("generating topology: %v", err)
		}

		out := make(map[string][]string, len(g))
		for _, nodeId := range g.NodeIds() {
			peers := g.Neighbors(nodeId)
			values := make([]string, len(peers))
			for i, p := range peers {
				values[i] = p.Value()
			}
			out[nodeId.Value()] = values
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logrus.Fatalf("encoding topology: %v", err)
		}
		fmt.Fprintf(os.Stderr, "generated %s topology with %d nodes (seed=%d)\n", topoType, topoNodeCount, topoSeed)
	},
}

func init() {
	topologyCmd.Flags().IntVar(&topoNodeCount, "nodes", 5, "Number of nodes")
	topologyCmd.Flags().StringVar(&topoType, "type", "LINE", "Topology type: LINE, RING, GRID, RANDOM")
	topologyCmd.Flags().Int64Var(&topoSeed, "seed", 1, "Random seed (only used by RANDOM)")
}
