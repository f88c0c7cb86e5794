package gridset

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/klauspost/compress/zstd"
)

// 切片帧格式（整体zstd压缩）：
// magic(4) | dtype(1) | ndim(1) | dims(uint32 * ndim) | 小端数据
const (
	frameMagic = "GSP1"

	dtypeFloat32 byte = 'f'
	dtypeInt32   byte = 'i'
)

var (
	encoder *zstd.Encoder
	decoder *zstd.Decoder
)

func init() {
	var err error
	if encoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault)); err != nil {
		panic(fmt.Sprintf("init zstd encoder: %v", err))
	}
	if decoder, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0)); err != nil {
		panic(fmt.Sprintf("init zstd decoder: %v", err))
	}
}

func frameHeader(dtype byte, dims ...int) []byte {
	h := make([]byte, 0, 6+4*len(dims))
	h = append(h, frameMagic...)
	h = append(h, dtype, byte(len(dims)))
	for _, d := range dims {
		h = binary.LittleEndian.AppendUint32(h, uint32(d))
	}
	return h
}

func EncodeRasterPatch(p *RasterPatch) ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	buf := frameHeader(dtypeFloat32, p.Bands, p.Rows, p.Cols)
	for _, v := range p.Data {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return encoder.EncodeAll(buf, nil), nil
}

func EncodeLabelPatch(p *LabelPatch) ([]byte, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	buf := frameHeader(dtypeInt32, p.Rows, p.Cols)
	for _, v := range p.Data {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(v))
	}
	return encoder.EncodeAll(buf, nil), nil
}

// 预测掩膜编码，nil编码为0x0的空帧
func EncodeMask(p *LabelPatch) ([]byte, error) {
	if p == nil {
		return encoder.EncodeAll(frameHeader(dtypeInt32, 0, 0), nil), nil
	}
	return EncodeLabelPatch(p)
}

// 只有0x0的空帧解码为nil；单边为0的帧视为损坏
func DecodeMask(data []byte) (p *LabelPatch, err error) {
	dims, body, err := decodeFrame(data, dtypeInt32, 2)
	if err != nil {
		return
	}
	if dims[0] == 0 && dims[1] == 0 {
		return
	}
	if dims[0] == 0 || dims[1] == 0 {
		err = fmt.Errorf("%w: mask frame %dx%d", ErrCodec, dims[0], dims[1])
		return
	}
	p = NewLabelPatch(dims[0], dims[1])
	for i := range p.Data {
		p.Data[i] = int32(binary.LittleEndian.Uint32(body[4*i:]))
	}
	return
}

func decodeFrame(data []byte, dtype byte, ndim int) (dims []int, body []byte, err error) {
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrCodec, err)
		return
	}
	head := 6 + 4*ndim
	if len(raw) < head || string(raw[:4]) != frameMagic {
		err = fmt.Errorf("%w: bad frame header", ErrCodec)
		return
	}
	if raw[4] != dtype || int(raw[5]) != ndim {
		err = fmt.Errorf("%w: frame dtype %q ndim %d, want %q ndim %d", ErrCodec, raw[4], raw[5], dtype, ndim)
		return
	}
	n := 1
	dims = make([]int, ndim)
	for i := range dims {
		dims[i] = int(binary.LittleEndian.Uint32(raw[6+4*i:]))
		n *= dims[i]
	}
	body = raw[head:]
	if len(body) != 4*n {
		err = fmt.Errorf("%w: frame holds %d bytes for %v", ErrCodec, len(body), dims)
	}
	return
}

func DecodeRasterPatch(data []byte) (p *RasterPatch, err error) {
	dims, body, err := decodeFrame(data, dtypeFloat32, 3)
	if err != nil {
		return
	}
	p = NewRasterPatch(dims[0], dims[1], dims[2])
	for i := range p.Data {
		p.Data[i] = math.Float32frombits(binary.LittleEndian.Uint32(body[4*i:]))
	}
	return
}

func DecodeLabelPatch(data []byte) (p *LabelPatch, err error) {
	dims, body, err := decodeFrame(data, dtypeInt32, 2)
	if err != nil {
		return
	}
	p = NewLabelPatch(dims[0], dims[1])
	for i := range p.Data {
		p.Data[i] = int32(binary.LittleEndian.Uint32(body[4*i:]))
	}
	return
}
