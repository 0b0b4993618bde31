package main

import (
	"flag"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kutluhann/decentralized-file-sharing-system/constants"
)

// --- CONFIGURATION ---
const (
	StartHTTPPort = constants.DefaultBasePort // Node 0 = 8000, Node 1 = 8001...
	ProjectRoot   = "../../"                  // Path to the node's main package from here
	SimDir        = "sim_data"
)

var cmds []*exec.Cmd

func main() {
	nodeCount := flag.Int("nodes", constants.DefaultPeerCount, "How many nodes to launch")
	logLevel := flag.String("log-level", "debug", "Log level passed to every node")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})

	absRoot, err := filepath.Abs(ProjectRoot)
	if err != nil {
		log.Fatal().Err(err).Msg("resolve project root")
	}

	// Clean up previous run
	os.RemoveAll(SimDir)
	if err := os.MkdirAll(SimDir, 0755); err != nil {
		log.Fatal().Err(err).Msg("create sim dir")
	}

	binary, err := filepath.Abs(filepath.Join(SimDir, "dfs-node"))
	if err != nil {
		log.Fatal().Err(err).Msg("resolve binary path")
	}
	log.Info().Str("root", absRoot).Msg("building node")
	build := exec.Command("go", "build", "-o", binary, ".")
	build.Dir = absRoot
	build.Stdout, build.Stderr = os.Stdout, os.Stderr
	if err := build.Run(); err != nil {
		log.Fatal().Err(err).Msg("build failed")
	}

	// Handle Ctrl+C to kill all nodes
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		log.Info().Msg("stopping all nodes")
		for _, cmd := range cmds {
			if cmd.Process != nil {
				cmd.Process.Signal(os.Interrupt)
			}
		}
		time.Sleep(time.Second)
		os.Exit(0)
	}()

	peers := ""
	for i := 0; i < *nodeCount; i++ {
		if i > 0 {
			peers += ","
		}
		peers += "localhost:" + strconv.Itoa(StartHTTPPort+i)
	}

	for i := 0; i < *nodeCount; i++ {
		if err := startNode(i, binary, peers, *logLevel); err != nil {
			log.Fatal().Err(err).Int("node", i).Msg("start failed")
		}
		time.Sleep(200 * time.Millisecond) // Stagger start
	}

	fmt.Printf("\n[Launcher] Network is running with %d nodes.\n", *nodeCount)
	fmt.Printf("Try: go run ./cmd/dfs --node localhost:%d status\n", StartHTTPPort)
	fmt.Printf("Check '%s/node_N/node.log' for output.\n", SimDir)
	fmt.Println("Press Ctrl+C to stop.")

	select {} // Block forever
}

func startNode(id int, binary, peers, logLevel string) error {
	port := StartHTTPPort + id

	// Each node gets its own key and chunk database
	nodeDir := filepath.Join(SimDir, fmt.Sprintf("node_%d", id))
	if err := os.MkdirAll(nodeDir, 0755); err != nil {
		return err
	}

	cmd := exec.Command(binary,
		"-port", strconv.Itoa(port),
		"-data", ".",
		"-peers", peers,
		"-log-level", logLevel,
	)
	cmd.Dir = nodeDir

	logFile, err := os.Create(filepath.Join(nodeDir, "node.log"))
	if err != nil {
		return err
	}
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Start(); err != nil {
		return err
	}

	cmds = append(cmds, cmd)
	log.Info().Int("node", id).Int("port", port).Msg("node running")
	return nil
}
