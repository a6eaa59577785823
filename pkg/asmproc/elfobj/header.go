package elfobj

import (
	"encoding/binary"
)

// Header is the 52-byte ELF32 file header.
type Header struct {
	Ident     [eiNIdent]byte
	Type      uint16
	Machine   uint16
	Version   uint32
	Entry     uint32
	Phoff     uint32
	Shoff     uint32
	Flags     uint32
	Ehsize    uint16
	Phentsize uint16
	Phnum     uint16
	Shentsize uint16
	Shnum     uint16
	Shstrndx  uint16
}

func readHeader(data []byte, order binary.ByteOrder) (Header, error) {
	if len(data) < elfHeaderSize {
		return Header{}, invalidElf("file too short for ELF header")
	}
	var h Header
	copy(h.Ident[:], data[:eiNIdent])
	p := data[eiNIdent:]
	h.Type = order.Uint16(p[0:2])
	h.Machine = order.Uint16(p[2:4])
	h.Version = order.Uint32(p[4:8])
	h.Entry = order.Uint32(p[8:12])
	h.Phoff = order.Uint32(p[12:16])
	h.Shoff = order.Uint32(p[16:20])
	h.Flags = order.Uint32(p[20:24])
	h.Ehsize = order.Uint16(p[24:26])
	h.Phentsize = order.Uint16(p[26:28])
	h.Phnum = order.Uint16(p[28:30])
	h.Shentsize = order.Uint16(p[30:32])
	h.Shnum = order.Uint16(p[32:34])
	h.Shstrndx = order.Uint16(p[34:36])

	if h.Ident[eiClass] != elfClass {
		return Header{}, invalidElf("ELF must be 32-bit")
	}
	if h.Type != etREL {
		return Header{}, invalidElf("ELF must be relocatable (ET_REL)")
	}
	if h.Machine != emMIPS {
		return Header{}, invalidElf("ELF must target MIPS (EM_MIPS)")
	}
	if h.Phoff != 0 {
		return Header{}, invalidElf("ELF must not have program headers")
	}
	if h.Shoff == 0 {
		return Header{}, invalidElf("ELF must have section headers")
	}
	if h.Shstrndx == ShnUndef {
		return Header{}, invalidElf("ELF must have a section header string table")
	}
	return h, nil
}

func (h Header) bytes(order binary.ByteOrder) []byte {
	out := make([]byte, elfHeaderSize)
	copy(out[:eiNIdent], h.Ident[:])
	p := out[eiNIdent:]
	order.PutUint16(p[0:2], h.Type)
	order.PutUint16(p[2:4], h.Machine)
	order.PutUint32(p[4:8], h.Version)
	order.PutUint32(p[8:12], h.Entry)
	order.PutUint32(p[12:16], h.Phoff)
	order.PutUint32(p[16:20], h.Shoff)
	order.PutUint32(p[20:24], h.Flags)
	order.PutUint16(p[24:26], h.Ehsize)
	order.PutUint16(p[26:28], h.Phentsize)
	order.PutUint16(p[28:30], h.Phnum)
	order.PutUint16(p[30:32], h.Shentsize)
	order.PutUint16(p[32:34], h.Shnum)
	order.PutUint16(p[34:36], h.Shstrndx)
	return out
}

// SectionHeader is the 40-byte ELF32 section header.
type SectionHeader struct {
	NameIndex uint32
	Type      uint32
	Flags     uint32
	Addr      uint32
	Offset    uint32
	Size      uint32
	Link      uint32
	Info      uint32
	Addralign uint32
	Entsize   uint32
}

func readSectionHeader(data []byte, order binary.ByteOrder) (SectionHeader, error) {
	if len(data) < sectionHdrSize {
		return SectionHeader{}, invalidElf("file too short for section header")
	}
	return SectionHeader{
		NameIndex: order.Uint32(data[0:4]),
		Type:      order.Uint32(data[4:8]),
		Flags:     order.Uint32(data[8:12]),
		Addr:      order.Uint32(data[12:16]),
		Offset:    order.Uint32(data[16:20]),
		Size:      order.Uint32(data[20:24]),
		Link:      order.Uint32(data[24:28]),
		Info:      order.Uint32(data[28:32]),
		Addralign: order.Uint32(data[32:36]),
		Entsize:   order.Uint32(data[36:40]),
	}, nil
}

func (h SectionHeader) bytes(order binary.ByteOrder) []byte {
	out := make([]byte, sectionHdrSize)
	order.PutUint32(out[0:4], h.NameIndex)
	order.PutUint32(out[4:8], h.Type)
	order.PutUint32(out[8:12], h.Flags)
	order.PutUint32(out[12:16], h.Addr)
	order.PutUint32(out[16:20], h.Offset)
	order.PutUint32(out[20:24], h.Size)
	order.PutUint32(out[24:28], h.Link)
	order.PutUint32(out[28:32], h.Info)
	order.PutUint32(out[32:36], h.Addralign)
	order.PutUint32(out[36:40], h.Entsize)
	return out
}
