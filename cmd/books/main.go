package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/loqalabs/loqa-books/internal/audio"
	"github.com/loqalabs/loqa-books/internal/catalog"
)

var version = "0.1.0-dev"

func main() {
	var catalogPath string
	validateCmd := flag.NewFlagSet("validate", flag.ExitOnError)
	validateCmd.StringVar(&catalogPath, "file", "", "Path to catalog (built-in catalog when empty)")

	var (
		in, out                 string
		rate, channels, bitsPer int
	)
	packCmd := flag.NewFlagSet("pack", flag.ExitOnError)
	packCmd.StringVar(&in, "in", "", "Raw little-endian PCM input")
	packCmd.StringVar(&out, "out", "narration.wav", "WAV output")
	packCmd.IntVar(&rate, "rate", audio.SpeechFormat.SampleRate, "Sample rate in Hz")
	packCmd.IntVar(&channels, "channels", audio.SpeechFormat.Channels, "Channel count")
	packCmd.IntVar(&bitsPer, "bits", audio.SpeechFormat.BitsPerSample, "Bits per sample")

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "expected 'validate', 'pack', 'inspect' or 'version'")
		os.Exit(2)
	}

	switch os.Args[1] {
	case "validate":
		validateCmd.Parse(os.Args[2:])
		if err := runValidate(catalogPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println("catalog valid")
	case "pack":
		packCmd.Parse(os.Args[2:])
		f := audio.Format{SampleRate: rate, Channels: channels, BitsPerSample: bitsPer}
		if err := runPack(in, out, f); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "inspect":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: books inspect <file.wav>")
			os.Exit(2)
		}
		if err := runInspect(os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		os.Exit(2)
	}
}

func runValidate(path string) error {
	c, err := catalog.Load(path)
	if err != nil {
		return err
	}
	fmt.Printf("%d books, %d plans\n", len(c.All()), len(c.Plans()))
	return nil
}

func runPack(in, out string, f audio.Format) error {
	if in == "" {
		return fmt.Errorf("-in is required")
	}
	if f.ByteRate() <= 0 || f.BitsPerSample%8 != 0 {
		return fmt.Errorf("invalid format %+v", f)
	}
	pcm, err := os.ReadFile(in)
	if err != nil {
		return err
	}
	if uint64(len(pcm)) > audio.MaxDataLen {
		return fmt.Errorf("%s: payload of %d bytes does not fit a WAV container", in, len(pcm))
	}
	if len(pcm)%f.BlockAlign() != 0 {
		return fmt.Errorf("%s: payload is not a whole number of frames", in)
	}
	w, err := os.Create(out)
	if err != nil {
		return err
	}
	asset := audio.Asset{PCM: pcm, Format: f}
	if err := audio.Encode(w, asset); err != nil {
		w.Close()
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	fmt.Printf("wrote %s (%s)\n", out, asset.Duration())
	return nil
}

func runInspect(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	info, err := audio.Inspect(data)
	if err != nil {
		return err
	}
	fmt.Printf("%d Hz, %d ch, %d bit, %d bytes, %.2fs\n",
		info.Format.SampleRate, info.Format.Channels, info.Format.BitsPerSample, info.DataLen, info.Duration)
	return nil
}
