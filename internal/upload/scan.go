/*
Copyright 2026 The Perkeep Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

     http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package upload

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/Eusha122/Backend/internal/store"
)

// largeFileThreshold is the size above which files skip heuristic scanning
// and are auto-marked safe.
const largeFileThreshold = 50 * 1024 * 1024

// scanSampleBytes bounds how much of a small file's content is pattern
// matched.
const scanSampleBytes = 10 * 1024

var denylistExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".sh": true, ".com": true,
	".scr": true, ".pif": true, ".vbs": true, ".js": true, ".jar": true,
	".msi": true, ".dll": true,
}

var suspiciousPatterns = [][]byte{
	[]byte("eval("), []byte("exec("), []byte("<script"), []byte("powershell"),
}

// scanResult pairs the two fields of File that ScanUpload produces.
type scanResult struct {
	Status store.ScanStatus
	Result string
}

// scanUpload implements the heuristic scan policy: files >= 50MB are
// auto-marked safe; smaller files get extension-denylist, double-extension,
// and a first-10KB content pattern check.
func scanUpload(filename string, sizeBytes int64, sample []byte) scanResult {
	if sizeBytes >= largeFileThreshold {
		return scanResult{Status: store.ScanSafe, Result: "Large file, scan skipped"}
	}

	lower := strings.ToLower(filename)
	ext := filepath.Ext(lower)
	if denylistExtensions[ext] {
		return scanResult{Status: store.ScanRisky, Result: "Blocked extension: " + ext}
	}
	if isDoubleExtension(lower) {
		return scanResult{Status: store.ScanRisky, Result: "Suspicious double extension"}
	}

	if len(sample) > scanSampleBytes {
		sample = sample[:scanSampleBytes]
	}
	lowerSample := bytes.ToLower(sample)
	for _, p := range suspiciousPatterns {
		if bytes.Contains(lowerSample, bytes.ToLower(p)) {
			return scanResult{Status: store.ScanRisky, Result: "Matched suspicious pattern: " + string(p)}
		}
	}
	return scanResult{Status: store.ScanSafe, Result: "No issues detected"}
}

// isDoubleExtension reports names like "invoice.pdf.exe": two or more
// extensions where the final one is a denylisted executable type.
func isDoubleExtension(lower string) bool {
	parts := strings.Split(lower, ".")
	if len(parts) < 3 {
		return false
	}
	return denylistExtensions["."+parts[len(parts)-1]]
}
