package dao

import (
	"bytes"
	"encoding/binary"
	"errors"

	"okinoko_governor/sdk"
)

var errUnexpectedEOF = errors.New("unexpected EOF")

type binWriter struct {
	buf bytes.Buffer
}

func newWriter() *binWriter { return &binWriter{} }

func (w *binWriter) bytes() []byte { return w.buf.Bytes() }

func (w *binWriter) writeBool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *binWriter) writeUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

func (w *binWriter) writeInt64(v int64) {
	w.writeUint64(uint64(v))
}

func (w *binWriter) writeVarUint(v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	w.buf.Write(tmp[:n])
}

func (w *binWriter) writeString(s string) {
	w.writeVarUint(uint64(len(s)))
	w.buf.WriteString(s)
}

func (w *binWriter) writeAddress(a sdk.Address) {
	w.writeString(a.String())
}

type binReader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *binReader {
	return &binReader{data: data}
}

func (r *binReader) readByte() (byte, error) {
	if r.pos >= len(r.data) {
		return 0, errUnexpectedEOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *binReader) readBool() (bool, error) {
	b, err := r.readByte()
	if err != nil {
		return false, err
	}
	return b == 1, nil
}

func (r *binReader) readUint64() (uint64, error) {
	if r.pos+8 > len(r.data) {
		return 0, errUnexpectedEOF
	}
	val := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return val, nil
}

func (r *binReader) readInt64() (int64, error) {
	v, err := r.readUint64()
	if err != nil {
		return 0, err
	}
	return int64(v), nil
}

func (r *binReader) readVarUint() (uint64, error) {
	val, n := binary.Uvarint(r.data[r.pos:])
	if n <= 0 {
		return 0, errors.New("invalid varuint")
	}
	r.pos += n
	return val, nil
}

func (r *binReader) readString() (string, error) {
	l, err := r.readVarUint()
	if err != nil {
		return "", err
	}
	if l > uint64(len(r.data)-r.pos) {
		return "", errUnexpectedEOF
	}
	s := string(r.data[r.pos : r.pos+int(l)])
	r.pos += int(l)
	return s, nil
}

func (r *binReader) readAddress() (sdk.Address, error) {
	s, err := r.readString()
	return sdk.Address(s), err
}

// EncodeProposal writes the proposal in field order; DecodeProposal must mirror it.
func EncodeProposal(p *Proposal) []byte {
	w := newWriter()
	w.writeUint64(p.ID)
	w.writeAddress(p.Proposer)
	w.writeString(p.Description)
	w.writeInt64(p.StartTime)
	w.writeInt64(p.EndTime)
	w.writeUint64(p.ForVotes)
	w.writeUint64(p.AgainstVotes)
	w.writeBool(p.Executed)
	w.writeBool(p.Canceled)
	w.writeAddress(p.Recipient)
	w.writeUint64(p.Amount)
	w.writeString(p.Token.String())
	w.writeString(p.Tx)
	return w.bytes()
}

func DecodeProposal(data []byte) (*Proposal, error) {
	r := newReader(data)
	p := &Proposal{}
	var err error
	if p.ID, err = r.readUint64(); err != nil {
		return nil, err
	}
	if p.Proposer, err = r.readAddress(); err != nil {
		return nil, err
	}
	if p.Description, err = r.readString(); err != nil {
		return nil, err
	}
	if p.StartTime, err = r.readInt64(); err != nil {
		return nil, err
	}
	if p.EndTime, err = r.readInt64(); err != nil {
		return nil, err
	}
	if p.ForVotes, err = r.readUint64(); err != nil {
		return nil, err
	}
	if p.AgainstVotes, err = r.readUint64(); err != nil {
		return nil, err
	}
	if p.Executed, err = r.readBool(); err != nil {
		return nil, err
	}
	if p.Canceled, err = r.readBool(); err != nil {
		return nil, err
	}
	if p.Recipient, err = r.readAddress(); err != nil {
		return nil, err
	}
	if p.Amount, err = r.readUint64(); err != nil {
		return nil, err
	}
	token, err := r.readString()
	if err != nil {
		return nil, err
	}
	p.Token = sdk.Asset(token)
	if p.Tx, err = r.readString(); err != nil {
		return nil, err
	}
	return p, nil
}

func EncodeReceipt(rc *Receipt) []byte {
	w := newWriter()
	w.writeBool(rc.HasVoted)
	w.writeBool(rc.Support)
	w.writeUint64(rc.Weight)
	w.writeInt64(rc.VotedAt)
	return w.bytes()
}

func DecodeReceipt(data []byte) (*Receipt, error) {
	r := newReader(data)
	rc := &Receipt{}
	var err error
	if rc.HasVoted, err = r.readBool(); err != nil {
		return nil, err
	}
	if rc.Support, err = r.readBool(); err != nil {
		return nil, err
	}
	if rc.Weight, err = r.readUint64(); err != nil {
		return nil, err
	}
	if rc.VotedAt, err = r.readInt64(); err != nil {
		return nil, err
	}
	return rc, nil
}

func EncodeGovernorConfig(cfg *GovernorConfig) []byte {
	w := newWriter()
	w.writeUint64(cfg.ProposalThreshold)
	w.writeInt64(cfg.VotingPeriod)
	w.writeUint64(cfg.QuorumVotes)
	return w.bytes()
}

func DecodeGovernorConfig(data []byte) (*GovernorConfig, error) {
	r := newReader(data)
	cfg := &GovernorConfig{}
	var err error
	if cfg.ProposalThreshold, err = r.readUint64(); err != nil {
		return nil, err
	}
	if cfg.VotingPeriod, err = r.readInt64(); err != nil {
		return nil, err
	}
	if cfg.QuorumVotes, err = r.readUint64(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func EncodeDelegation(d *Delegation) []byte {
	w := newWriter()
	w.writeBool(d.Active)
	w.writeAddress(d.Delegate)
	return w.bytes()
}

func DecodeDelegation(data []byte) (*Delegation, error) {
	r := newReader(data)
	d := &Delegation{}
	var err error
	if d.Active, err = r.readBool(); err != nil {
		return nil, err
	}
	if d.Delegate, err = r.readAddress(); err != nil {
		return nil, err
	}
	return d, nil
}
