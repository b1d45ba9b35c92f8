package drift

import (
	"archive/tar"
	"archive/zip"
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/catherinevee/certguard/internal/models"
)

// BinaryDeltas produces size/hash metadata deltas for modified non-text
// files, plus entry-level zip/jar (including MANIFEST.MF) and tar archive
// diffs, matching binary_deltas.
func BinaryDeltas(goldenRoot, candidateRoot string, modified []string) []models.Delta {
	var out []models.Delta
	for _, rel := range modified {
		gp := filepath.Join(goldenRoot, filepath.FromSlash(rel))
		cp := filepath.Join(candidateRoot, filepath.FromSlash(rel))
		gInfo, gErr := os.Stat(gp)
		cInfo, cErr := os.Stat(cp)
		if gErr != nil || cErr != nil {
			continue
		}
		if IsText(cp) {
			continue
		}

		gHash, _ := sha256File(gp)
		cHash, _ := sha256File(cp)
		loc := models.Locator{Type: models.LocatorPath, Value: rel}
		out = append(out, newDelta("bin~"+rel, models.CategoryBinaryMeta, rel, loc,
			map[string]interface{}{"size": gInfo.Size(), "sha256": gHash},
			map[string]interface{}{"size": cInfo.Size(), "sha256": cHash}))

		if isZip(gp) && isZip(cp) {
			out = append(out, zipDiff(gp, cp, rel)...)
		}
		if isTar(gp) && isTar(cp) {
			out = append(out, tarDiff(gp, cp, rel)...)
		}
	}
	return out
}

func sha256File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func isZip(path string) bool {
	r, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	r.Close()
	return true
}

func isTar(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	tr := tar.NewReader(f)
	_, err = tr.Next()
	return err == nil
}

func zipEntries(path string) (map[string]int64, *zip.ReadCloser) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, nil
	}
	out := map[string]int64{}
	for _, f := range r.File {
		out[f.Name] = int64(f.UncompressedSize64)
	}
	return out, r
}

func zipDiff(gp, cp, rel string) []models.Delta {
	var out []models.Delta
	ge, gr := zipEntries(gp)
	if gr != nil {
		defer gr.Close()
	}
	ce, cr := zipEntries(cp)
	if cr != nil {
		defer cr.Close()
	}

	added := map[string]interface{}{}
	removed := map[string]interface{}{}
	changed := map[string]models.KeyChange{}
	for k, v := range ce {
		if gv, ok := ge[k]; !ok {
			added[k] = v
		} else if gv != v {
			changed[k] = models.KeyChange{From: gv, To: v}
		}
	}
	for k, v := range ge {
		if _, ok := ce[k]; !ok {
			removed[k] = v
		}
	}
	if len(added) > 0 || len(removed) > 0 || len(changed) > 0 {
		loc := models.Locator{Type: models.LocatorPath, Value: rel}
		d := newDelta("zip~"+rel, models.CategoryArchiveDelta, rel, loc,
			map[string]interface{}{"entries": len(ge)}, map[string]interface{}{"entries": len(ce)})
		d.HunkInfo = map[string]interface{}{"added": added, "removed": removed, "changed": changed}
		out = append(out, d)
	}

	gm := zipManifest(gp)
	cm := zipManifest(cp)
	for _, k := range sortedUnionStringKeysManifest(gm, cm) {
		if gm[k] != cm[k] {
			loc := models.Locator{Type: models.LocatorKeypath, Value: rel + ".MANIFEST." + k}
			out = append(out, newDelta("manifest~"+rel+"."+k, models.CategoryArchiveManif, rel, loc, gm[k], cm[k]))
		}
	}
	return out
}

func zipManifest(path string) map[string]string {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil
	}
	defer r.Close()
	for _, f := range r.File {
		if f.Name != "META-INF/MANIFEST.MF" {
			continue
		}
		rc, openErr := f.Open()
		if openErr != nil {
			return nil
		}
		defer rc.Close()
		out := map[string]string{}
		scanner := bufio.NewScanner(rc)
		for scanner.Scan() {
			line := scanner.Text()
			if idx := strings.Index(line, ":"); idx >= 0 {
				out[strings.TrimSpace(line[:idx])] = strings.TrimSpace(line[idx+1:])
			}
		}
		return out
	}
	return nil
}

func sortedUnionStringKeysManifest(a, b map[string]string) []string {
	set := map[string]bool{}
	for k := range a {
		set[k] = true
	}
	for k := range b {
		set[k] = true
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func tarEntries(path string) map[string]int64 {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()
	tr := tar.NewReader(f)
	out := map[string]int64{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		if hdr.Typeflag == tar.TypeReg {
			out[hdr.Name] = hdr.Size
		}
	}
	return out
}

func tarDiff(gp, cp, rel string) []models.Delta {
	ge := tarEntries(gp)
	ce := tarEntries(cp)

	added := map[string]interface{}{}
	removed := map[string]interface{}{}
	changed := map[string]models.KeyChange{}
	for k, v := range ce {
		if gv, ok := ge[k]; !ok {
			added[k] = v
		} else if gv != v {
			changed[k] = models.KeyChange{From: gv, To: v}
		}
	}
	for k, v := range ge {
		if _, ok := ce[k]; !ok {
			removed[k] = v
		}
	}
	if len(added) == 0 && len(removed) == 0 && len(changed) == 0 {
		return nil
	}
	loc := models.Locator{Type: models.LocatorPath, Value: rel}
	d := newDelta("tar~"+rel, models.CategoryArchiveDelta, rel, loc,
		map[string]interface{}{"entries": len(ge)}, map[string]interface{}{"entries": len(ce)})
	d.HunkInfo = map[string]interface{}{"added": added, "removed": removed, "changed": changed}
	return []models.Delta{d}
}
