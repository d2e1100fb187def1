package api

import (
	"github.com/cockroachdb/errors"
	"github.com/ssargent/objektdb/pkg/codec"
	"github.com/ssargent/objektdb/pkg/record"
	"github.com/ssargent/objektdb/pkg/table"
)

// Record operations shared by the REST handlers and websocket sessions.

func insertRecord(h *table.Handle, fields map[string]string) (RecordResponse, error) {
	values, err := h.Codec().ParseValues(fields)
	if err != nil {
		return RecordResponse{}, err
	}
	oid, err := h.Insert(values)
	if err != nil {
		return RecordResponse{}, err
	}
	return readRecord(h, oid)
}

func readRecord(h *table.Handle, oid uint64) (RecordResponse, error) {
	rec, err := h.Read(oid)
	if err != nil {
		return RecordResponse{}, err
	}
	return RecordResponse{OID: oid, Fields: h.Codec().Format(rec)}, nil
}

func replaceRecord(h *table.Handle, oid uint64, fields map[string]string) (RecordResponse, error) {
	c := h.Codec()
	values, err := c.ParseValues(fields)
	if err != nil {
		return RecordResponse{}, err
	}
	id, err := codec.OIDValue(c.Schema().OIDField().Type, oid)
	if err != nil {
		return RecordResponse{}, err
	}
	if err := h.Replace(append(record.Record{id}, values...)); err != nil {
		return RecordResponse{}, err
	}
	return readRecord(h, oid)
}

// listRecords returns up to limit records in OID order.
func listRecords(h *table.Handle, limit int) ([]RecordResponse, error) {
	c := h.Codec()
	out := make([]RecordResponse, 0)
	errStop := errors.New("limit reached")
	err := h.Scan(func(oid uint64, rec record.Record) error {
		if len(out) == limit {
			return errStop
		}
		out = append(out, RecordResponse{OID: oid, Fields: c.Format(rec)})
		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}
	return out, nil
}
