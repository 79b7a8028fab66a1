package ingestion

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniffDelimiter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		sample string
		want   rune
	}{
		{"semicolon", "nome;sku;preco\nVela;A1;10,00\n", ';'},
		{"comma", "nome,sku,preco\nVela,A1,10.00\n", ','},
		{"pipe", "nome|sku\nVela|A1\n", '|'},
		{"tab", "nome\tsku\nVela\tA1\n", '\t'},
		{"quoted delimiter ignored", "nome,descricao\n\"Vela; aroma; 200g\",linda\n", ','},
		{"crlf", "nome;sku\r\nVela;A1\r\n", ';'},
		{"header only", "nome;sku;preco", ';'},
		{"single column falls back to comma", "nome\nVela\n", ','},
		{"header without candidates falls back to comma", "nome\nVela;A1\n", ','},
		{"comma decimals in semicolon file", "nome;preco\nVela;10,00\nGel;5,50\n", ';'},
		{"ragged rows keep header delimiter", "nome;sku;preco\nVela;A1;1\nÓleo;B2\n", ';'},
		{"empty", "", ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, string(tt.want), string(SniffDelimiter([]byte(tt.sample))))
		})
	}
}

func TestSniffDelimiter_IgnoresTruncatedLastLine(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	b.WriteString("nome;sku\n")
	for b.Len() < sniffSampleSize+100 {
		b.WriteString("Vela;A1\n")
	}
	sample := []byte(b.String())[:sniffSampleSize]
	// Cut mid-record so the final line has no delimiter.
	sample[len(sample)-1] = 'V'
	sample[len(sample)-2] = '\n'
	assert.Equal(t, ";", string(SniffDelimiter(sample)))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	row := map[string]string{
		"Nome":  "  Vela   Aromática ",
		"nome":  "",
		"Code":  "A1",
		"price": "   ",
		"Price": "29,90",
	}
	assert.Equal(t, "Vela Aromática", Resolve(row, FieldName), "empty first alias falls through")
	assert.Equal(t, "A1", Resolve(row, FieldSKU))
	assert.Equal(t, "29,90", Resolve(row, FieldPrice), "whitespace-only value falls through")
	assert.Equal(t, "", Resolve(row, FieldStock))
}

func TestProductDocument(t *testing.T) {
	t.Parallel()

	p := ProductFromRow(map[string]string{
		"nome": "Vela Aromática", "sku": "A1", "preço": "29,90",
		"Categoria": "Velas", "stock": "3", "Descrição": "Vela de massagem",
	})
	want := "PRODUTO\nNome: Vela Aromática\nSKU: A1\nPreço: 29,90\nCategoria: Velas\nEstoque: 3\nDescrição: Vela de massagem"
	assert.Equal(t, want, p.Document())
	assert.False(t, p.Empty())

	assert.True(t, ProductFromRow(map[string]string{"sku": "Z9", "preco": "1"}).Empty())
	assert.False(t, ProductFromRow(map[string]string{"description": "só descrição"}).Empty())
}

func TestReadCatalog(t *testing.T) {
	t.Parallel()

	csvText := "\ufeffnome;SKU;preço;descricao\n" +
		"Vela Aromática;A1;29,90;\"Vela; aroma baunilha\"\n" +
		"\n" +
		"Óleo;B2\n" +
		"Gel;C3;10;desc;extra\n"

	rows, err := ReadCatalog(strings.NewReader(csvText))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, 1, rows[0].Number)
	assert.Equal(t, "Vela Aromática", rows[0].Fields["nome"], "BOM must not leak into the first header")
	assert.Equal(t, "Vela; aroma baunilha", rows[0].Fields["descricao"])

	assert.Equal(t, 2, rows[1].Number)
	assert.Equal(t, "", rows[1].Fields["descricao"], "short rows leave missing columns empty")

	assert.Equal(t, "C3", rows[2].Fields["SKU"])
}

func TestReadCatalog_Empty(t *testing.T) {
	t.Parallel()

	rows, err := ReadCatalog(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}
