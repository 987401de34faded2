package dataset

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/fastasd/pkg/errors"
)

// LoadCSV parses rows of the form x_1,...,x_p,y. Blank lines are skipped and a
// first row that does not parse as numbers is treated as a header.
func LoadCSV(r io.Reader, dims []int) (*Dataset, error) {
	const op = "dataset.LoadCSV"
	rdr := csv.NewReader(r)
	rdr.TrimLeadingSpace = true

	var (
		data []float64
		y    []float64
		p    = -1
	)
	for line := 1; ; line++ {
		record, err := rdr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s: line %d", op, line)
		}
		if len(record) < 2 {
			return nil, errors.NewValueError(op, "each row needs at least one feature and a response")
		}
		row, err := parseRow(record)
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, errors.Wrapf(err, "%s: line %d", op, line)
		}
		if p < 0 {
			p = len(row) - 1
		}
		if len(row)-1 != p {
			return nil, errors.NewDimensionError(op, p, len(row)-1, 1)
		}
		data = append(data, row[:p]...)
		y = append(y, row[p])
	}
	if len(y) == 0 {
		return nil, errors.NewModelError(op, "no rows", errors.ErrEmptyData)
	}
	return New(mat.NewDense(len(y), p, data), y, dims)
}

func parseRow(record []string) ([]float64, error) {
	row := make([]float64, len(record))
	for i, s := range record {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, err
		}
		row[i] = v
	}
	return row, nil
}

// WriteCSV writes d in the format read by LoadCSV, without a header.
func WriteCSV(w io.Writer, d *Dataset) error {
	cw := csv.NewWriter(w)
	record := make([]string, d.P+1)
	for i := 0; i < d.N; i++ {
		for j := 0; j < d.P; j++ {
			record[j] = strconv.FormatFloat(d.X.At(i, j), 'g', -1, 64)
		}
		record[d.P] = strconv.FormatFloat(d.Y[i], 'g', -1, 64)
		if err := cw.Write(record); err != nil {
			return errors.Wrap(err, "dataset.WriteCSV")
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "dataset.WriteCSV")
}
