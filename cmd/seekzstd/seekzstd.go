package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	seekzstd "github.com/3leaps/seekable-zstd"

	"github.com/djherbis/atime"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/pflag"
	"golang.org/x/term"
)

const VERSION = "1.0"

var flagStdout = pflag.BoolP("stdout", "c", false, "write on standard output, keep original files unchanged")
var flagDecompress = pflag.BoolP("decompress", "d", false, "decompress")
var flagForce = pflag.BoolP("force", "f", false, "force overwrite of output file")
var flagHelp = pflag.BoolP("help", "h", false, "give this help")
var flagKeep = pflag.BoolP("keep", "k", false, "keep (don't delete) input files")
var flagList = pflag.BoolP("list", "l", false, "list the frame table of each archive")
var flagTest = pflag.BoolP("test", "t", false, "test compressed file integrity")
var flagVersion = pflag.BoolP("version", "V", false, "display version number")
var flagL1 = pflag.BoolP("fast", "1", false, "compress faster")
var flagL9 = pflag.BoolP("best", "9", false, "compress better")
var flagRsyncable = pflag.Bool("rsyncable", false, "make rsync-friendly archive")
var flagFrameSize = pflag.Int("frame-size", seekzstd.DefaultFrameSize, "uncompressed bytes per frame")
var flagRanges = pflag.StringArrayP("range", "r", nil, "extract decompressed byte range START:END (repeatable)")

const (
	ModeCompress = iota
	ModeDecompress
	ModeTest
	ModeList
	ModeRange
)

var Mode = ModeCompress
var Level = zstd.SpeedDefault
var Files []string
var OutFn string
var IsStdoutTerm bool = term.IsTerminal(1)

func main() {
	pflag.Parse()
	if *flagHelp {
		Usage()
		return
	}
	if *flagVersion {
		fmt.Println("seekzstd", VERSION)
		return
	}

	switch {
	case *flagL1:
		Level = zstd.SpeedFastest
	case *flagL9:
		Level = zstd.SpeedBestCompression
	}

	Files = pflag.Args()
	if len(Files) == 0 {
		Files = []string{"-"}
	}

	binname := filepath.Base(os.Args[0])

	if *flagDecompress || strings.Contains(binname, "unzstd") {
		Mode = ModeDecompress
	}
	if *flagTest {
		Mode = ModeTest
	}
	if *flagList {
		Mode = ModeList
	}
	if len(*flagRanges) > 0 {
		Mode = ModeRange
	}

	SetSignalHandler()
	os.Exit(Run())
}

func SetSignalHandler() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-ch
		os.Remove(OutFn)
	}()
}

func CopyStat(w *os.File, f *os.File) {
	fi, err := f.Stat()
	if err == nil {
		w.Chmod(fi.Mode())
		if sys, ok := fi.Sys().(*syscall.Stat_t); ok {
			w.Chown(int(sys.Uid), int(sys.Gid))
			os.Chtimes(w.Name(), atime.Get(fi), fi.ModTime())
		}
	}
}

func fatal(args ...interface{}) {
	fmt.Fprint(os.Stderr, "seekzstd: ")
	fmt.Fprintln(os.Stderr, args...)
}

func parseRanges(args []string) ([]seekzstd.Range, error) {
	ranges := make([]seekzstd.Range, 0, len(args))
	for _, arg := range args {
		lo, hi, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("range %q: want START:END", arg)
		}
		start, err := strconv.ParseInt(lo, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %v", arg, err)
		}
		end, err := strconv.ParseInt(hi, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("range %q: %v", arg, err)
		}
		ranges = append(ranges, seekzstd.Range{Start: start, End: end})
	}
	return ranges, nil
}

func listFrames(fn string) bool {
	a, err := seekzstd.Open(fn)
	if err != nil {
		fatal(err)
		return false
	}
	defer a.Close()

	fmt.Printf("%s: %d frames, %d uncompressed bytes\n", fn, a.FrameCount(), a.Size())
	return true
}

func extractRanges(fn string) bool {
	ranges, err := parseRanges(*flagRanges)
	if err != nil {
		fatal(err)
		return false
	}

	a, err := seekzstd.Open(fn)
	if err != nil {
		fatal(err)
		return false
	}
	defer a.Close()

	results, err := a.ReadRanges(ranges)
	if err != nil {
		fatal(err)
		return false
	}
	for _, data := range results {
		if _, err := os.Stdout.Write(data); err != nil {
			fatal(err)
			return false
		}
	}
	return true
}

func testArchive(fn string) bool {
	a, err := seekzstd.Open(fn, seekzstd.WithVerifyChecksums(true))
	if err != nil {
		fatal(fn+":", err)
		return false
	}
	a.Close()
	return true
}

func processFile(fn string) bool {
	var f *os.File
	var w *os.File

	outStdout := *flagStdout
	if fn == "-" {
		f = os.Stdin
		outStdout = true
	} else {
		var err error
		f, err = os.Open(fn)
		if err != nil {
			fatal(err)
			return false
		}
		defer f.Close()
	}

	if outStdout {
		w = os.Stdout
		if Mode == ModeCompress && IsStdoutTerm && !*flagForce {
			fatal("cannot compress to terminal (use -f to force)")
			return false
		}
	} else {
		var outfn string

		switch Mode {
		case ModeCompress:
			outfn = fn + ".zst"
		case ModeDecompress:
			ext := filepath.Ext(fn)
			if ext != ".zst" && ext != ".zstd" {
				fatal(fn, "unknown suffix -- ignored")
				return true
			}
			outfn = fn[:len(fn)-len(ext)]
		}

		if !*flagForce {
			if _, err := os.Stat(outfn); err == nil {
				fmt.Printf("seekzstd: %s already exists; do you wish to overwrite (y or n)? ", outfn)
				reader := bufio.NewReader(os.Stdin)
				input, _ := reader.ReadString('\n')
				if input[0] != 'y' {
					fmt.Println("\tnot overwritten")
					return true
				}
			}
		}

		var err error
		w, err = os.Create(outfn)
		if err != nil {
			fatal(err)
			return false
		}
		// Setup the global used by the signal handler, so that if we
		// interrupt before the compression/decompression is finished,
		// the temporary file will be deleted
		OutFn = outfn
		defer func() { os.Remove(OutFn) }()
		defer w.Close()
	}

	var err error
	switch Mode {
	case ModeCompress:
		var zw seekzstd.Writer
		if *flagRsyncable {
			zw, err = seekzstd.NewWriterLevelRsyncable(w, Level)
		} else {
			zw, err = seekzstd.NewWriterLevel(w, Level, *flagFrameSize)
		}
		if err != nil {
			fatal(err)
			return false
		}
		if _, err = io.Copy(zw, f); err != nil {
			fatal(err)
			return false
		}
		if err = zw.Close(); err != nil {
			fatal(err)
			return false
		}
	case ModeDecompress:
		// A seekable archive decodes as a plain zstd stream; the trailing
		// seek table lives in a skippable frame the decoder ignores.
		var zr *zstd.Decoder
		zr, err = zstd.NewReader(f)
		if err != nil {
			fatal(err)
			return false
		}
		defer zr.Close()
		if _, err = io.Copy(w, zr); err != nil {
			fatal(err)
			return false
		}
	}

	OutFn = ""
	if !outStdout {
		CopyStat(w, f)
		if !*flagKeep {
			os.Remove(fn)
		}
	}
	return true
}

func Run() int {
	for _, fn := range Files {
		var ok bool
		switch Mode {
		case ModeTest:
			ok = testArchive(fn)
		case ModeList:
			ok = listFrames(fn)
		case ModeRange:
			ok = extractRanges(fn)
		default:
			ok = processFile(fn)
		}
		if !ok {
			return 1
		}
	}
	return 0
}

func Usage() {
	// We prefer not to use pflag.Usage for the following reason:
	// 1) It orders by longname option, which is confusing for this option set
	// 2) It shows "[=false]" next to all boolean options
	fmt.Println(`Usage: seekzstd [OPTION]... [FILE]...
Compress or uncompress FILEs into seekable zstd archives (by default,
compress FILES in-place).

Mandatory arguments to long options are mandatory for short options too.

  -c, --stdout       write on standard output, keep original files unchanged
  -d, --decompress   decompress
  -f, --force        force overwrite of output file
  -h, --help         give this help
  -k, --keep         keep (don't delete) input files
  -l, --list         list the frame table of each archive
  -r, --range S:E    extract the decompressed byte range [S, E) to stdout;
                     may be repeated, ranges are decoded in parallel
  -t, --test         test compressed file integrity
  -V, --version      display version number
  -1, --fast         compress faster
  -9, --best         compress better
      --frame-size N uncompressed bytes per frame (default 262144)
      --rsyncable    make rsync-friendly archive

With no FILE, or when FILE is -, read standard input.`)
}
