package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/mqjs-project/mqjs"
)

const defaultWritePermission = 0644 // -rw-r--r--

type args struct {
	expr        *string
	compileOnly *bool
	interactive *bool

	asmOnly   *bool
	memStats  *bool
	memLimit  *string
	laxSemis  *bool
}

func readArgs() *args {
	a := &args{
		expr:        flag.String("e", "", "Evaluate an expression and print the result"),
		compileOnly: flag.Bool("c", false, "Compile the input file to a bytecode file"),
		interactive: flag.Bool("i", false, "Drops into a read-eval-print loop"),

		// Debugging options

		asmOnly:  flag.Bool("asm", false, "Print the compiled bytecode listing instead of running"),
		memStats: flag.Bool("d", false, "Print memory usage stats after running"),

		// Engine options

		memLimit: flag.String("memory-limit", "", "Arena budget, e.g. 512k or 8M"),
		laxSemis: flag.Bool("lax-semicolons", false, "Don't require statement-terminating semicolons"),
	}

	flag.Parse()

	return a
}

func main() {
	a := readArgs()

	cfg := mqjs.NewConfig()
	if *a.memLimit != "" {
		n, err := parseMemoryLimit(*a.memLimit)
		if err != nil {
			log.Fatal(err)
		}
		cfg.MemoryBudgetBytes = n
	}
	if *a.laxSemis {
		cfg.StrictSemicolons = false
	}

	engine := mqjs.NewEngine(cfg)
	defer engine.Destroy()

	code := 0
	switch {
	case *a.expr != "":
		code = evalAndPrint(engine, *a.expr)
	case *a.interactive:
		repl(engine)
	case flag.Arg(0) != "":
		code = runFile(engine, a, flag.Arg(0))
	default:
		flag.Usage()
		os.Exit(2)
	}

	if *a.memStats {
		printMemStats(engine)
	}
	os.Exit(code)
}

func evalAndPrint(engine *mqjs.Engine, src string) int {
	v, err := engine.Eval(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Println(engine.Inspect(v))
	return 0
}

func runFile(engine *mqjs.Engine, a *args, path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}

	var program *mqjs.Program
	if strings.HasSuffix(path, mqjs.BytecodeExt) {
		program, err = engine.LoadBytes(data)
	} else {
		program, err = engine.Compile(data)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if *a.asmOnly {
		fmt.Print(engine.Disassemble(program, true))
		return 0
	}

	if *a.compileOnly {
		out := strings.TrimSuffix(path, ".js") + mqjs.BytecodeExt
		if err := os.WriteFile(out, engine.SerializeProgram(program), defaultWritePermission); err != nil {
			log.Fatal(err)
		}
		return 0
	}

	if _, err := engine.Run(program); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

func repl(engine *mqjs.Engine) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			v, err := engine.Eval(line)
			switch {
			case err != nil:
				fmt.Fprintln(os.Stderr, err)
			case !v.IsUndefined():
				fmt.Println(engine.Inspect(v))
			}
		}
		fmt.Print("> ")
	}
	fmt.Println()
}

func printMemStats(engine *mqjs.Engine) {
	s := engine.MemoryStats()
	fmt.Fprintf(os.Stderr, "bytes used: %d\n", s.BytesUsed)
	fmt.Fprintf(os.Stderr, "strings: %d objects: %d arrays: %d closures: %d\n",
		s.Strings, s.Objects, s.Arrays, s.Closures)
	fmt.Fprintf(os.Stderr, "errors: %d regexps: %d iterators: %d functions: %d\n",
		s.Errors, s.Regexps, s.Iterators, s.Functions)
}

// parseMemoryLimit accepts plain bytes or a k/K/m/M suffix.
func parseMemoryLimit(s string) (int, error) {
	mult := 1
	switch {
	case strings.HasSuffix(s, "k"), strings.HasSuffix(s, "K"):
		mult, s = 1024, s[:len(s)-1]
	case strings.HasSuffix(s, "m"), strings.HasSuffix(s, "M"):
		mult, s = 1024*1024, s[:len(s)-1]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid memory limit %q", s)
	}
	return n * mult, nil
}
