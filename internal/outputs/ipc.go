// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package outputs

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
)

// i3/sway IPC framing.
const (
	ipcMagic        = "i3-ipc"
	ipcHeaderLen    = len(ipcMagic) + 8
	ipcGetOutputs   = 3
	ipcMaxReplySize = 4 << 20
)

// SwayIPC lists outputs over the sway IPC socket.
type SwayIPC struct {
	// Socket is the IPC socket path. Empty means $SWAYSOCK.
	Socket string
}

func (s SwayIPC) socket() string {
	if s.Socket != "" {
		return s.Socket
	}
	return os.Getenv("SWAYSOCK")
}

// List implements Lister.
func (s SwayIPC) List(ctx context.Context) ([]Output, error) {
	path := s.socket()
	if path == "" {
		return nil, unavailable("sway-ipc", fmt.Errorf("SWAYSOCK is not set"))
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, unavailable("sway-ipc", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := writeMessage(conn, ipcGetOutputs, nil); err != nil {
		return nil, unavailable("sway-ipc", err)
	}
	typ, payload, err := readMessage(conn)
	if err != nil {
		if ctx.Err() != nil {
			return nil, unavailable("sway-ipc", ctx.Err())
		}
		return nil, err
	}
	if typ != ipcGetOutputs {
		return nil, malformed("sway-ipc", fmt.Errorf("reply type %d, want %d", typ, ipcGetOutputs))
	}

	outs, err := ParseOutputs(payload)
	if err != nil {
		return nil, malformed("sway-ipc", err)
	}
	return outs, nil
}

func writeMessage(w io.Writer, typ uint32, payload []byte) error {
	buf := make([]byte, ipcHeaderLen+len(payload))
	copy(buf, ipcMagic)
	binary.LittleEndian.PutUint32(buf[len(ipcMagic):], uint32(len(payload)))
	binary.LittleEndian.PutUint32(buf[len(ipcMagic)+4:], typ)
	copy(buf[ipcHeaderLen:], payload)
	_, err := w.Write(buf)
	return err
}

func readMessage(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, ipcHeaderLen)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, unavailable("sway-ipc", err)
	}
	if string(header[:len(ipcMagic)]) != ipcMagic {
		return 0, nil, malformed("sway-ipc", fmt.Errorf("bad magic %q", header[:len(ipcMagic)]))
	}
	size := binary.LittleEndian.Uint32(header[len(ipcMagic):])
	typ := binary.LittleEndian.Uint32(header[len(ipcMagic)+4:])
	if size > ipcMaxReplySize {
		return 0, nil, malformed("sway-ipc", fmt.Errorf("reply of %d bytes is too large", size))
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, unavailable("sway-ipc", err)
	}
	return typ, payload, nil
}
