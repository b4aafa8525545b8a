// simos-server boots the simulated kernel, runs a scripted workload that
// exercises the process and memory subsystems, and then shuts down cleanly.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simos/pkg/config"
	"simos/pkg/kernel"
	"simos/pkg/logging"
	"simos/pkg/memory"
	"simos/pkg/process"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	scheduler := flag.String("scheduler", "", "override scheduler algorithm: round_robin, priority, mlfq")
	runFor := flag.Duration("run", 3*time.Second, "how long to let the clock run after the demo script")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	if *scheduler != "" {
		cfg.Scheduler.Algorithm = *scheduler
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Console)
	defer logger.Sync()

	k := kernel.New(cfg, logger)
	if err := k.Boot(); err != nil {
		log.Fatalf("boot: %v", err)
	}

	fmt.Println("=== simos kernel demo ===")
	runScript(k)

	// Let the clock tick on its own for a while before halting.
	done := make(chan os.Signal, 1)
	signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-time.After(*runFor):
	case <-done:
		fmt.Println("interrupted")
	}

	printStats(k)
	if err := k.Shutdown(); err != nil {
		log.Fatalf("shutdown: %v", err)
	}
}

// runScript walks the kernel through creation, forking, memory traffic,
// signals, and termination.
func runScript(k *kernel.Kernel) {
	fmt.Println("\n--- Process creation ---")
	shell, err := k.CreateProcess(process.CreateSpec{
		Name:    "shell",
		Command: "/bin/sh",
	})
	if err != nil {
		log.Fatalf("create shell: %v", err)
	}
	fmt.Printf("created shell: pid=%d state=%s\n", shell.PID, shell.State())

	worker, err := k.CreateProcess(process.CreateSpec{
		Name:      "worker",
		Command:   "/bin/worker",
		ParentPID: shell.PID,
		Priority:  3,
	})
	if err != nil {
		log.Fatalf("create worker: %v", err)
	}
	fmt.Printf("created worker: pid=%d parent=%d\n", worker.PID, worker.PPID)

	fmt.Println("\n--- Fork and exec ---")
	child, err := k.Fork(shell.PID)
	if err != nil {
		log.Fatalf("fork: %v", err)
	}
	fmt.Printf("forked shell: child pid=%d ip=%#x\n", child.PID, child.Context.Instruction)
	if err := k.Exec(child.PID, "/bin/cat"); err != nil {
		log.Fatalf("exec: %v", err)
	}
	fmt.Printf("after exec: command=%s ip=%#x sp=%#x\n",
		child.Command, child.Context.Instruction, child.Context.StackPointer)

	fmt.Println("\n--- Memory traffic ---")
	addr, err := k.Allocate(worker.PID, 64*1024)
	if err != nil {
		log.Fatalf("allocate: %v", err)
	}
	fmt.Printf("allocated 64 KiB for worker at %#x\n", addr)

	phys, err := k.Translate(worker.PID, addr+100)
	if err != nil {
		log.Fatalf("translate: %v", err)
	}
	fmt.Printf("virtual %#x -> physical %#x\n", addr+100, phys)

	if err := k.PageFault(worker.PID, addr+8192, true); err != nil {
		log.Fatalf("page fault: %v", err)
	}
	fmt.Printf("page fault at %#x handled (%d total)\n", addr+8192, worker.Stats.PageFaults)

	// Push past the per-process limit to show enforcement.
	_, err = k.Allocate(worker.PID, 1<<30)
	var allocErr *memory.AllocationError
	if errors.As(err, &allocErr) {
		fmt.Printf("oversized allocation refused: %v\n", err)
	}

	if err := k.Free(worker.PID, addr); err != nil {
		log.Fatalf("free: %v", err)
	}
	fmt.Println("freed worker allocation")

	fmt.Println("\n--- Scheduling ---")
	for i := 0; i < 5; i++ {
		k.Tick()
		fmt.Printf("tick %d: pid %d on cpu\n", i+1, k.Processes().CurrentPID())
	}

	fmt.Println("\n--- Signals ---")
	if err := k.Kill(worker.PID, process.SIGSTOP); err != nil {
		log.Fatalf("stop: %v", err)
	}
	fmt.Printf("worker stopped: state=%s\n", worker.State())
	if err := k.Kill(worker.PID, process.SIGCONT); err != nil {
		log.Fatalf("continue: %v", err)
	}
	fmt.Printf("worker continued: state=%s\n", worker.State())

	if err := k.Kill(child.PID, process.SIGTERM); err != nil {
		log.Fatalf("term: %v", err)
	}
	k.Tick()
	fmt.Printf("child after SIGTERM tick: state=%s exit=%d\n", child.State(), child.ExitCode)

	fmt.Println("\n--- Termination ---")
	if err := k.Terminate(shell.PID, 0); err != nil {
		log.Fatalf("terminate: %v", err)
	}
	k.Tick()
	fmt.Printf("shell terminated; %d processes remain\n", k.Processes().Count())
}

func printStats(k *kernel.Kernel) {
	s := k.Stats()
	fmt.Println("\n--- Final stats ---")
	fmt.Printf("uptime: %v over %d ticks\n", s.Uptime.Round(time.Millisecond), s.Ticks)
	fmt.Printf("processes: %d (queued %d, switches %d)\n",
		s.Process.Processes, s.Process.Queued, s.Process.Switches.Switches)
	fmt.Printf("frames: %d used / %d total, %d page faults\n",
		s.Memory.Frames.UsedFrames, s.Memory.Frames.TotalFrames, s.Memory.PageFaults)
}
