// Package taxonomytest provides a small taxonomy for tests of packages that
// consume taxonomy reference data.
package taxonomytest

import (
	"testing"

	"github.com/byu0224-0001/fin-put-Backend-sub002/internal/taxonomy"
)

// Version is the version string of the fixture document.
const Version = "test-v1"

// YAML is the fixture taxonomy document.
const YAML = `
version: test-v1
nodes:
  - code: TECH
    level: 1
    label: 정보기술
  - code: SEMI
    level: 2
    parent: TECH
    label: 반도체
    reference: 반도체 칩 설계 제조 웨이퍼 파운드리
    detail: 집적회로와 메모리, 시스템 반도체를 설계하거나 웨이퍼 공정으로 제조하는 기업
    keywords: [반도체, 웨이퍼, 파운드리]
  - code: SEMI_MEM
    level: 3
    parent: SEMI
    label: 메모리반도체
    reference: DRAM NAND 메모리 반도체
    keywords: [DRAM, NAND]
  - code: SEMI_EQP
    level: 3
    parent: SEMI
    label: 반도체장비
    reference: 반도체 제조 장비 식각 증착
  - code: SW
    level: 2
    parent: TECH
    label: 소프트웨어
    reference: 소프트웨어 플랫폼 SaaS 솔루션
  - code: SW_CLOUD
    level: 3
    parent: SW
    label: 클라우드
    reference: 클라우드 인프라 호스팅
  - code: RE
    level: 1
    label: 부동산
  - code: REDEV
    level: 2
    parent: RE
    label: 부동산개발임대
    reference: 부동산 개발 임대 분양
  - code: RE_REIT
    level: 3
    parent: REDEV
    label: 리츠
    reference: 부동산투자회사 리츠 임대수익 배당
  - code: FIN
    level: 1
    label: 금융
  - code: FINHOLD
    level: 2
    parent: FIN
    label: 지주투자
    reference: 지주회사 자회사 지분 투자 배당수익
  - code: FIN_SPAC
    level: 3
    parent: FINHOLD
    label: 기업인수목적회사
    reference: 기업인수목적 합병 스팩
  - code: IND
    level: 1
    label: 산업재
  - code: BATT
    level: 2
    parent: IND
    label: 이차전지
    reference: 이차전지 배터리 양극재 음극재
aliases:
  SEMICON: SEMI
  OLD_MEM: SEMI_MEM
  LEGACY_CHIP: SEMICON
segment_keywords:
  반도체: SEMI
  반도체장비: SEMI_EQP
  메모리: SEMI_MEM
  소프트웨어: SW
  클라우드: SW_CLOUD
  IT: SW
  부동산: REDEV
  배터리: BATT
  2차전지: BATT
  a: SEMI
  b: SW
synonyms:
  semiconductor: 반도체
  memory: 메모리
  이차전지: 2차전지
neutral_keywords:
  - 배당수익
  - 임대수익
  - 브랜드로열티
  - dividend income
  - rental income
  - brand royalty
industry_codes:
  C26: TECH
  C261: SEMI
  K64: FINHOLD
  L68: REDEV
entity_sectors:
  SPAC: FIN_SPAC
  REIT: RE_REIT
`

// New parses the fixture, failing the test on error.
func New(t testing.TB) *taxonomy.Taxonomy {
	t.Helper()
	tax, err := taxonomy.Parse([]byte(YAML))
	if err != nil {
		t.Fatalf("parse fixture taxonomy: %v", err)
	}
	return tax
}
