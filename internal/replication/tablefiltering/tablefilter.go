/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements. See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tablefiltering

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"github.com/go-errors/errors"
)

// TableFilter matches tables against include and exclude patterns.
// Patterns use the form schema.table where both tokens support the
// wildcards * (any), ? (single character), and + (at least one
// character), and double quotes for case-sensitive matching. Excludes
// always win over includes.
type TableFilter struct {
	includes          []*filter
	excludes          []*filter
	acceptedByDefault bool

	mutex       sync.Mutex
	filterCache map[string]bool
}

func NewTableFilter(
	excludes, includes []string, acceptedByDefault bool,
) (*TableFilter, error) {

	excludeFilters := make([]*filter, 0, len(excludes))
	for _, exclude := range excludes {
		f, err := parseFilter(exclude)
		if err != nil {
			return nil, err
		}
		excludeFilters = append(excludeFilters, f)
	}

	includeFilters := make([]*filter, 0, len(includes))
	for _, include := range includes {
		f, err := parseFilter(include)
		if err != nil {
			return nil, err
		}
		includeFilters = append(includeFilters, f)
	}

	return &TableFilter{
		includes:          includeFilters,
		excludes:          excludeFilters,
		acceptedByDefault: acceptedByDefault,
		filterCache:       make(map[string]bool),
	}, nil
}

func (tf *TableFilter) Enabled(
	schemaName, tableName string,
) bool {

	tf.mutex.Lock()
	defer tf.mutex.Unlock()

	canonicalName := fmt.Sprintf("%s.%s", schemaName, tableName)
	if v, present := tf.filterCache[canonicalName]; present {
		return v
	}

	// Excluded has priority
	for _, exclude := range tf.excludes {
		if exclude.matches(schemaName, tableName) {
			tf.filterCache[canonicalName] = false
			return false
		}
	}

	for _, include := range tf.includes {
		if include.matches(schemaName, tableName) {
			tf.filterCache[canonicalName] = true
			return true
		}
	}

	tf.filterCache[canonicalName] = tf.acceptedByDefault
	return tf.acceptedByDefault
}

type filter struct {
	namespace      string
	table          string
	namespaceRegex *regexp.Regexp
	tableRegex     *regexp.Regexp
}

func parseFilter(
	filterTerm string,
) (*filter, error) {

	tokens := strings.Split(filterTerm, ".")
	if len(tokens) != 2 {
		return nil, errors.Errorf("failed parsing filter term: %s", filterTerm)
	}

	namespace, namespaceIsRegex, err := parseToken(tokens[0])
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	table, tableIsRegex, err := parseToken(tokens[1])
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}

	f := &filter{}
	if namespaceIsRegex {
		f.namespaceRegex = regexp.MustCompile(fmt.Sprintf("^%s$", namespace))
	} else {
		f.namespace = namespace
	}

	if tableIsRegex {
		f.tableRegex = regexp.MustCompile(fmt.Sprintf("^%s$", table))
	} else {
		f.table = table
	}
	return f, nil
}

func (f *filter) matches(
	namespace, table string,
) bool {

	if f.namespaceRegex != nil {
		if !f.namespaceRegex.MatchString(namespace) {
			return false
		}
	} else {
		if f.namespace != namespace {
			return false
		}
	}

	if f.tableRegex != nil {
		if !f.tableRegex.MatchString(table) {
			return false
		}
	} else {
		if f.table != table {
			return false
		}
	}
	return true
}

func parseToken(
	token string,
) (string, bool, error) {

	isQuoted := token[0] == '"' && token[len(token)-1] == '"'

	// When not quoted, all identifiers are folded to lowercase
	if !isQuoted {
		token = strings.ToLower(token)
	}

	// Check identifier length
	if len(token) > 63 {
		if !isQuoted || len(token) > 65 {
			return "", false, errors.Errorf("a pattern cannot be longer than 63 characters")
		}
	}

	firstIndex := 0
	if isQuoted {
		firstIndex++
	}
	lastIndex := len(token)
	if isQuoted {
		lastIndex--
	}

	// If unquoted the first character needs to be a letter, underscore, or a valid wildcard (*|?|+)
	if !isQuoted {
		if !unicode.IsLetter(rune(token[0])) &&
			token[0] != '_' &&
			token[0] != '*' &&
			token[0] != '?' &&
			token[0] != '+' {

			return "", false, errors.Errorf(
				"%s is an illegal first character of pattern '%s'", string(token[0]), token,
			)
		}
	}

	isRegex := false
	runedToken := []rune(token)
	builder := strings.Builder{}
	for i := firstIndex; i < lastIndex; i++ {
		char := runedToken[i]

		if char == '\\' && isQuoted {
			if i < len(runedToken)-1 {
				peekNextChar := runedToken[i+1]
				if peekNextChar == '*' {
					builder.WriteString("\\*")
					i++
				} else if peekNextChar == '?' {
					builder.WriteString("\\?")
					i++
				} else if peekNextChar == '+' {
					builder.WriteString("\\+")
					i++
				}
			}
		} else if char == '*' {
			builder.WriteString(".*?")
			isRegex = true
		} else if char == '?' {
			builder.WriteString(".{1}")
			isRegex = true
		} else if char == '+' {
			builder.WriteString(".+?")
			isRegex = true
		} else if unicode.IsLetter(char) || unicode.IsNumber(char) || char == '_' || isQuoted {
			builder.WriteRune(char)
		} else {
			return "", false, errors.Errorf(
				"illegal character in pattern '%s' at index %d", token, i,
			)
		}
	}

	parsedToken := builder.String()
	if !isQuoted && !isRegex {
		uppercaseParsedToken := strings.ToUpper(parsedToken)
		for _, keyword := range reservedKeywords {
			if keyword == uppercaseParsedToken {
				return "", false, errors.Errorf(
					"an unquoted pattern cannot match a reserved keyword: %s", keyword,
				)
			}
		}
	}

	return parsedToken, isRegex, nil
}

// Reserved keywords of the PostgreSQL SQL dialect which cannot appear
// as unquoted identifiers.
var reservedKeywords = []string{
	"ALL", "ANALYSE", "ANALYZE", "AND", "ANY", "ARRAY", "AS", "ASC",
	"ASYMMETRIC", "AUTHORIZATION", "BINARY", "BOTH", "CASE", "CAST",
	"CHECK", "COLLATE", "COLLATION", "COLUMN", "CONCURRENTLY",
	"CONSTRAINT", "CREATE", "CROSS", "CURRENT_CATALOG", "CURRENT_DATE",
	"CURRENT_ROLE", "CURRENT_SCHEMA", "CURRENT_TIME", "CURRENT_TIMESTAMP",
	"CURRENT_USER", "DEFAULT", "DEFERRABLE", "DESC", "DISTINCT", "DO",
	"ELSE", "END", "EXCEPT", "FALSE", "FETCH", "FOR", "FOREIGN", "FREEZE",
	"FROM", "FULL", "GRANT", "GROUP", "HAVING", "ILIKE", "IN", "INITIALLY",
	"INNER", "INTERSECT", "INTO", "IS", "ISNULL", "JOIN", "LATERAL",
	"LEADING", "LEFT", "LIKE", "LIMIT", "LOCALTIME", "LOCALTIMESTAMP",
	"NATURAL", "NOT", "NOTNULL", "NULL", "OFFSET", "ON", "ONLY", "OR",
	"ORDER", "OUTER", "OVERLAPS", "PLACING", "PRIMARY", "REFERENCES",
	"RETURNING", "RIGHT", "SELECT", "SESSION_USER", "SIMILAR", "SOME",
	"SYMMETRIC", "TABLE", "TABLESAMPLE", "THEN", "TO", "TRAILING", "TRUE",
	"UNION", "UNIQUE", "USER", "USING", "VARIADIC", "VERBOSE", "WHEN",
	"WHERE", "WINDOW", "WITH",
}
