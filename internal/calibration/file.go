package calibration

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// FileHeader is the first line of every calibration table file.
const FileHeader = "Attenuation [dB], UCS Amplitude [mV/dBm], UCS Power [dBm], CS Amplitude [mV/dBm], CS Power [dBm]"

// Pair is the uncorrelated and correlated table of one signal kind, as
// stored together in one file.
type Pair struct {
	Uncorrelated *Table
	Correlated   *Table
}

// readRows parses a comma separated file with one header line into float
// rows of exactly width columns.
func readRows(r io.Reader, width int) ([][]float64, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.Comment = '#'

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header line")
		}
		return nil, fmt.Errorf("header: %w", err)
	}

	var rows [][]float64
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		if len(record) != width {
			line, _ := reader.FieldPos(0)
			return nil, fmt.Errorf("line %d: got %d columns, want %d", line, len(record), width)
		}

		row := make([]float64, width)
		for i, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				line, _ := reader.FieldPos(i)
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			row[i] = v
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// ReadPair parses a calibration table file: one header line, then rows of
// attenuation, ucs voltage, ucs power, cs voltage, cs power.
func ReadPair(r io.Reader, kind string) (*Pair, error) {
	rows, err := readRows(r, 5)
	if err != nil {
		return nil, fmt.Errorf("%s calibration: %w", kind, err)
	}

	ucs := make([]Sample, len(rows))
	cs := make([]Sample, len(rows))
	for i, row := range rows {
		ucs[i] = Sample{Attenuation: row[0], Voltage: row[1], Power: row[2]}
		cs[i] = Sample{Attenuation: row[0], Voltage: row[3], Power: row[4]}
	}

	uncorrelated, err := NewTable("ucs "+kind, ucs)
	if err != nil {
		return nil, err
	}
	correlated, err := NewTable("cs "+kind, cs)
	if err != nil {
		return nil, err
	}

	return &Pair{Uncorrelated: uncorrelated, Correlated: correlated}, nil
}

// LoadPair reads a calibration table file from disk.
func LoadPair(path, kind string) (*Pair, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s calibration: %w", kind, err)
	}
	defer f.Close()

	return ReadPair(f, kind)
}

// WritePair writes ucs and cs rows side by side. Both slices share the
// attenuation column of ucs and must have equal length.
func WritePair(w io.Writer, ucs, cs []Sample) error {
	if len(ucs) != len(cs) {
		return fmt.Errorf("table length mismatch: ucs %d rows, cs %d rows", len(ucs), len(cs))
	}

	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, FileHeader); err != nil {
		return err
	}
	for i := range ucs {
		if _, err := fmt.Fprintf(bw, "%f, %f, %f, %f, %f\n",
			ucs[i].Attenuation, ucs[i].Voltage, ucs[i].Power, cs[i].Voltage, cs[i].Power); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// SavePair writes a calibration table file to disk.
func SavePair(path string, ucs, cs []Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WritePair(f, ucs, cs); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
