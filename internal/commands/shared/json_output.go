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


package shared

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tombee/wallman/internal/jq"
)

// EmitJSON writes v as indented JSON to w. When a --jq filter is set each
// value it produces is written on its own; strings are written raw so
// `--jq .state` prints running rather than "running".
func EmitJSON(ctx context.Context, w io.Writer, v any) error {
	return emitFiltered(ctx, w, v, GetJQ())
}

func emitFiltered(ctx context.Context, w io.Writer, v any, expr string) error {
	if expr == "" {
		return writeJSON(w, v)
	}

	results, err := jq.NewExecutor(0, 0).Execute(ctx, expr, v)
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: "jq filter failed", Cause: err}
	}
	for _, r := range results {
		if s, ok := r.(string); ok {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
			continue
		}
		if err := writeJSON(w, r); err != nil {
			return err
		}
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
