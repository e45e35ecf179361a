// Package executor invokes the external inscription tool exactly once
// per eligible transaction, with bounded retries (spec.md §4.6).
package executor

import (
	"context"
	"encoding/json"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/bitbar/minting-monitor/internal/journal"
	"github.com/bitbar/minting-monitor/internal/monitorclient"
)

// failureSubstrings are checked against stderr, case-sensitively, per
// spec.md §4.6 step 7.
var failureSubstrings = []string{"insufficient funds", "error", "failed"}

// Runner executes one inscription command and returns its captured
// stdout/stderr. Abstracted so tests can avoid invoking real
// subprocesses; the production implementation shells out via os/exec.
type Runner interface {
	Run(ctx context.Context, command string) (stdout, stderr string, err error)
}

// ShellRunner runs the command through "sh -c", matching how an
// operator would paste the same command template at a terminal.
type ShellRunner struct{}

// Run implements Runner.
func (ShellRunner) Run(ctx context.Context, command string) (string, string, error) {
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

// Retry describes one txid's outstanding attempt count, for the
// Worker's /status introspection endpoint.
type Retry struct {
	TxID       string `json:"txid"`
	Attempts   int    `json:"attempts"`
	MaxRetries int    `json:"maxRetries"`
}

// Executor owns the per-txid attempts map and in-flight set described
// in spec.md §5 ("Shared resource policy"): both are single-process
// memory, never shared with the Monitor.
type Executor struct {
	commandTemplate string
	maxRetries      int
	runner          Runner
	journal         *journal.Journal
	monitor         *monitorclient.Client
	now             func() time.Time

	mu       sync.Mutex
	attempts map[string]int
	inFlight map[string]bool
}

// New creates an Executor. runner may be nil to use ShellRunner.
func New(commandTemplate string, maxRetries int, runner Runner, j *journal.Journal, mc *monitorclient.Client) *Executor {
	if runner == nil {
		runner = ShellRunner{}
	}
	return &Executor{
		commandTemplate: commandTemplate,
		maxRetries:      maxRetries,
		runner:          runner,
		journal:         j,
		monitor:         mc,
		now:             time.Now,
		attempts:        make(map[string]int),
		inFlight:        make(map[string]bool),
	}
}

// IsInFlight reports whether txid currently has a subprocess running.
func (e *Executor) IsInFlight(txid string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[txid]
}

// Retries returns the current attempts map as a status snapshot. Every
// entry is included, exhausted txids too; entries are removed only by a
// successful mint or a process restart.
func (e *Executor) Retries() []Retry {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Retry, 0, len(e.attempts))
	for txid, n := range e.attempts {
		out = append(out, Retry{TxID: txid, Attempts: n, MaxRetries: e.maxRetries})
	}
	return out
}

// ActiveOperations returns the txids currently in flight.
func (e *Executor) ActiveOperations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.inFlight))
	for txid := range e.inFlight {
		out = append(out, txid)
	}
	return out
}

// Execute runs the ten-step procedure of spec.md §4.6 for one
// (txid, destination) pair.
func (e *Executor) Execute(ctx context.Context, txid, destination, walletName, filePath string) {
	e.mu.Lock()
	attempts := e.attempts[txid]
	if attempts >= e.maxRetries {
		e.mu.Unlock()
		log.Printf("executor: %s has exhausted %d retries, skipping", txid, e.maxRetries)
		return
	}

	if destination == "" {
		e.attempts[txid] = e.maxRetries
		e.mu.Unlock()
		log.Printf("executor: %s has no sender_address, poisoning attempts to maxRetries", txid)
		return
	}

	e.inFlight[txid] = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		delete(e.inFlight, txid)
		e.mu.Unlock()
	}()

	command := substitute(e.commandTemplate, walletName, filePath, destination)
	stdout, stderr, runErr := e.runner.Run(ctx, command)

	inscriptionID, ok := parseInscriptionID(stdout)
	if runErr != nil || !ok || hasFailureSubstring(stderr) {
		e.mu.Lock()
		e.attempts[txid]++
		e.mu.Unlock()
		log.Printf("executor: inscription attempt for %s failed (runErr=%v, parsed=%v): stderr=%q", txid, runErr, ok, stderr)
		return
	}

	if e.journal != nil {
		rec := journal.Record{
			TxID:          txid,
			InscriptionID: inscriptionID,
			Destination:   destination,
			TimestampMs:   e.now().UnixMilli(),
		}
		if err := e.journal.Append(rec); err != nil {
			log.Printf("executor: journal append for %s failed: %v", txid, err)
		}
	}

	if e.monitor != nil {
		result, err := e.monitor.ConfirmMint(ctx, txid, inscriptionID)
		if err != nil || result == monitorclient.ConfirmNotFound {
			// The mint happened on-chain; the ledger has not caught up.
			// Attempts are left unchanged, so if the Monitor still lists
			// the txid as pending, the next tick runs the inscription
			// command again (the exactly-once hazard).
			log.Printf("executor: confirm POST for %s failed (result=%q, err=%v); txid stays pending and will be re-executed next tick", txid, result, err)
			return
		}
	}

	e.mu.Lock()
	delete(e.attempts, txid)
	e.mu.Unlock()
}

func substitute(template, wallet, file, destination string) string {
	out := strings.ReplaceAll(template, "{wallet}", wallet)
	out = strings.ReplaceAll(out, "{file}", file)
	out = strings.ReplaceAll(out, "{destination}", destination)
	return out
}

type inscriptionListResponse struct {
	Inscriptions []struct {
		ID string `json:"id"`
	} `json:"inscriptions"`
}

// parseInscriptionID tolerates the two stdout formats named in spec.md
// §4.6 step 6: a JSON object with inscriptions[0].id, or a line of the
// form "inscription_id: <value>".
func parseInscriptionID(stdout string) (string, bool) {
	var resp inscriptionListResponse
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &resp); err == nil {
		if len(resp.Inscriptions) > 0 && resp.Inscriptions[0].ID != "" {
			return resp.Inscriptions[0].ID, true
		}
	}

	for _, line := range strings.Split(stdout, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "inscription_id:") {
			id := strings.TrimSpace(strings.TrimPrefix(line, "inscription_id:"))
			if id != "" {
				return id, true
			}
		}
	}
	return "", false
}

func hasFailureSubstring(stderr string) bool {
	for _, s := range failureSubstrings {
		if strings.Contains(stderr, s) {
			return true
		}
	}
	return false
}
